package narrative

import "testing"

func TestStyleFor_KnownEras(t *testing.T) {
	for _, era := range []string{EraRepublican, EraMedieval, EraModern, EraWestern} {
		s := StyleFor(era)
		if s.Tag != era {
			t.Errorf("StyleFor(%q).Tag = %q, want %q", era, s.Tag, era)
		}
		if s.Directive == "" {
			t.Errorf("StyleFor(%q) has empty directive", era)
		}
	}
}

func TestStyleFor_UnknownFallsBackToDefault(t *testing.T) {
	for _, tag := range []string{"", "steampunk", "mediaeval", "  "} {
		s := StyleFor(tag)
		if s.Tag != "default" {
			t.Errorf("StyleFor(%q).Tag = %q, want default", tag, s.Tag)
		}
		if s.Directive == "" {
			t.Errorf("StyleFor(%q) has empty directive", tag)
		}
	}
}

func TestStyleFor_NormalisesInput(t *testing.T) {
	want := StyleFor(EraMedieval)
	for _, tag := range []string{"Medieval", "MEDIEVAL", "  medieval  "} {
		if got := StyleFor(tag); got != want {
			t.Errorf("StyleFor(%q) = %+v, want %+v", tag, got, want)
		}
	}
}

func TestStyleFor_Deterministic(t *testing.T) {
	for range 10 {
		if got := StyleFor(EraWestern); got != StyleFor(EraWestern) {
			t.Fatal("StyleFor is not deterministic")
		}
	}
}
