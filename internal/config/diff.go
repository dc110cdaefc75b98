package config

// ConfigDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded are applied at runtime; everything else is reported
// in RestartRequired so an operator can see the reload was partial.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SummarizeChanged bool
	NewSummarize     SummarizeConfig

	// RestartRequired names config sections whose changes only take effect
	// after a restart.
	RestartRequired []string
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SummarizeChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Summarize != new.Summarize {
		d.SummarizeChanged = true
		d.NewSummarize = new.Summarize
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !providersEqual(old.Provider, new.Provider) {
		d.RestartRequired = append(d.RestartRequired, "provider")
	}
	if old.Memory != new.Memory {
		d.RestartRequired = append(d.RestartRequired, "memory")
	}

	return d
}

func providersEqual(a, b ProviderConfig) bool {
	if a.Name != b.Name || a.Model != b.Model || a.APIKey != b.APIKey ||
		a.BaseURL != b.BaseURL || a.Timeout != b.Timeout {
		return false
	}
	if len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if a.Fallbacks[i] != b.Fallbacks[i] {
			return false
		}
	}
	return true
}
