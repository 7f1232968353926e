package imagegen

import "testing"

func TestParseTier(t *testing.T) {
	cases := []struct {
		mode  string
		ok    bool
		width int
		steps int
	}{
		{"fast", true, 768, 20},
		{"slow", true, 1024, 28},
		{"FAST", false, 0, 0},
		{"", false, 0, 0},
		{"bogus", false, 0, 0},
	}
	for _, tc := range cases {
		tier, ok := ParseTier(tc.mode)
		if ok != tc.ok || tier.Width != tc.width || tier.Steps != tc.steps { t.Fatalf("ParseTier(%q)=%+v,%v", tc.mode, tier, ok) }
	}
}

func TestTierParams(t *testing.T) {
	p := TierSlow.Params("castle")
	if p.Prompt != "castle" || p.Height != 1024 || p.GuidanceScale != 7.5 { t.Fatalf("p=%+v", p) }
	if DefaultMode != TierFast.Mode { t.Fatalf("default=%s", DefaultMode) }
}
