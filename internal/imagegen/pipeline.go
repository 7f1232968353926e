package imagegen

import (
	"context"

	"visiond/internal/slot"
)

// Pipeline is a loaded diffusion model.
type Pipeline interface {
	slot.Handle
	// Generate renders p and returns encoded PNG bytes. onStep, when non-nil,
	// is called as denoising steps complete.
	Generate(ctx context.Context, p Params, onStep func(step, total int)) ([]byte, error)
}

// Loader builds pipelines for tier variants.
type Loader = slot.Loader[Pipeline]

// unavailableLoader fails every load; it stands in when no model runtime is
// configured so the service still answers status and admin requests.
type unavailableLoader struct{ reason string }

func (l unavailableLoader) Load(context.Context, slot.Variant) (Pipeline, error) {
	return nil, ErrDependencyUnavailable(l.reason)
}

// UnavailableLoader returns a Loader whose loads fail with a dependency error.
func UnavailableLoader(reason string) Loader {
	if reason == "" {
		reason = "model runtime not configured"
	}
	return unavailableLoader{reason: reason}
}
