package types

import "testing"

func TestNormalizeEquivalence(t *testing.T) {
	want := Normalize("Jane Doe")
	for _, in := range []string{" jane  doe ", "JANE DOE", "Jane\tDoe", "jane doe"} {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeStripsNonPrintable(t *testing.T) {
	if got := Normalize("Jane\x00 Doe\x07"); got != "jane doe" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("   "); got != "" {
		t.Errorf("Normalize(blank) = %q", got)
	}
}
