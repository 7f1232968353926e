package segment

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/registry"
	"visiond/internal/runtime"
	"visiond/internal/slot"
)

// RuntimeLoader loads SAM models in the model runtime sidecar.
type RuntimeLoader struct {
	Client   *runtime.Client
	Registry *registry.Registry
	// Checkpoint overrides the default SAM weights file.
	Checkpoint string
	Logger     *zerolog.Logger
}

func (l *RuntimeLoader) Load(ctx context.Context, v slot.Variant) (Model, error) {
	src, err := l.Registry.ResolveSAM(string(v), l.Checkpoint)
	if err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Info().Str("model_type", src.Variant).Str("checkpoint", src.Location).Msg("loading sam in runtime")
	}
	id, err := l.Client.CreateSAM(ctx, src)
	if err != nil {
		if errors.Is(err, runtime.ErrUnavailable) {
			return nil, unavailableError{msg: err.Error()}
		}
		return nil, err
	}
	return &runtimeModel{client: l.Client, id: id}, nil
}

type runtimeModel struct {
	client *runtime.Client
	id     string
}

func (m *runtimeModel) Predict(ctx context.Context, img []byte, box Box) ([]*image.Alpha, error) {
	masks, err := m.client.PredictSAM(ctx, m.id, img, [4]float64(box))
	if err != nil {
		return nil, err
	}
	out := make([]*image.Alpha, 0, len(masks))
	for _, mk := range masks {
		a := image.NewAlpha(image.Rect(0, 0, mk.Width, mk.Height))
		for i, v := range mk.Data {
			if v != 0 {
				a.Pix[i] = 0xff
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *runtimeModel) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return m.client.DeleteSAM(ctx, m.id)
}
