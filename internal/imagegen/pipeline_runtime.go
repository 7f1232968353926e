package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/registry"
	"visiond/internal/runtime"
	"visiond/internal/slot"
)

// RuntimeLoader loads pipelines in the model runtime sidecar.
type RuntimeLoader struct {
	Client   *runtime.Client
	Registry *registry.Registry
	Logger   *zerolog.Logger
}

func (l *RuntimeLoader) Load(ctx context.Context, v slot.Variant) (Pipeline, error) {
	src, err := l.Registry.Resolve(string(v))
	if err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Info().Str("variant", string(v)).Str("location", src.Location).Bool("single_file", src.SingleFile).Msg("loading pipeline in runtime")
	}
	id, err := l.Client.CreatePipeline(ctx, src)
	if err != nil {
		if errors.Is(err, runtime.ErrUnavailable) {
			return nil, ErrDependencyUnavailable(err.Error())
		}
		return nil, err
	}
	return &runtimePipeline{client: l.Client, id: id}, nil
}

type runtimePipeline struct {
	client *runtime.Client
	id     string
}

func (p *runtimePipeline) Generate(ctx context.Context, params Params, onStep func(step, total int)) ([]byte, error) {
	img, err := p.client.Generate(ctx, p.id, runtime.GenerateRequest{
		Prompt:        params.Prompt,
		Width:         params.Width,
		Height:        params.Height,
		Steps:         params.Steps,
		GuidanceScale: params.GuidanceScale,
	}, onStep)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return img, nil
}

// Close unloads the pipeline. It runs outside any request, so it carries its
// own deadline.
func (p *runtimePipeline) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return p.client.DeletePipeline(ctx, p.id)
}
