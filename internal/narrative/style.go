package narrative

import "strings"

// Style is a prose-style directive resolved from a scenario era tag.
type Style struct {
	// Tag is the normalised era tag the directive was resolved from, or
	// "default" when the tag was unknown or absent.
	Tag string

	// Directive is the register instruction embedded into generation prompts.
	Directive string
}

// Era tags with a dedicated style directive.
const (
	EraRepublican = "republican-era"
	EraMedieval   = "medieval"
	EraModern     = "modern"
	EraWestern    = "western-period"
)

// styleTable maps era tags to their prose directives.
var styleTable = map[string]string{
	EraRepublican: "Write in a half-classical, half-vernacular register, coloured by the idiom of the era.",
	EraMedieval:   "Write in an archaic, formal register with a restrained, ceremonious cadence.",
	EraModern:     "Write in a plain, direct register with contemporary phrasing.",
	EraWestern:    "Write in an elevated register reminiscent of translated literature.",
}

// defaultStyle is applied to unrecognised or absent era tags.
var defaultStyle = Style{
	Tag:       "default",
	Directive: "Write in a plain, direct register with contemporary phrasing.",
}

// StyleFor resolves the style directive for an era tag. It is pure and
// total: every input, including the empty string and unknown tags, yields a
// defined directive. Tags are matched case-insensitively with surrounding
// whitespace ignored.
func StyleFor(eraTag string) Style {
	tag := strings.ToLower(strings.TrimSpace(eraTag))
	if directive, ok := styleTable[tag]; ok {
		return Style{Tag: tag, Directive: directive}
	}
	return defaultStyle
}
