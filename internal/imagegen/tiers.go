package imagegen

import (
	"visiond/internal/registry"
	"visiond/internal/slot"
)

// Params are the diffusion parameters for one generation.
type Params struct {
	Prompt        string
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
}

// Tier is a quality mode bound to one pipeline variant.
type Tier struct {
	Mode          string
	Variant       slot.Variant
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
}

// Params returns the tier's parameters for prompt.
func (t Tier) Params(prompt string) Params {
	return Params{Prompt: prompt, Width: t.Width, Height: t.Height, Steps: t.Steps, GuidanceScale: t.GuidanceScale}
}

var (
	TierFast = Tier{Mode: registry.VariantFast, Variant: registry.VariantFast, Width: 768, Height: 768, Steps: 20, GuidanceScale: 7.5}
	TierSlow = Tier{Mode: registry.VariantSlow, Variant: registry.VariantSlow, Width: 1024, Height: 1024, Steps: 28, GuidanceScale: 7.5}
)

// DefaultMode is used when a request omits the mode.
const DefaultMode = registry.VariantFast

// ParseTier maps a request mode to its tier.
func ParseTier(mode string) (Tier, bool) {
	switch mode {
	case TierFast.Mode:
		return TierFast, true
	case TierSlow.Mode:
		return TierSlow, true
	}
	return Tier{}, false
}
