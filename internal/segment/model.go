package segment

import (
	"context"
	"encoding/json"
	"image"

	"visiond/internal/slot"
)

// Box is a prompt rectangle (x1, y1, x2, y2) in source pixel coordinates.
type Box [4]float64

// Model is a loaded segmentation model.
type Model interface {
	slot.Handle
	// Predict returns the candidate masks for box over the encoded image.
	// Each mask has the source image's dimensions.
	Predict(ctx context.Context, img []byte, box Box) ([]*image.Alpha, error)
}

// Loader builds segmentation models for a model type.
type Loader = slot.Loader[Model]

type unavailableLoader struct{ reason string }

func (l unavailableLoader) Load(context.Context, slot.Variant) (Model, error) {
	return nil, unavailableError{msg: l.reason}
}

// UnavailableLoader returns a Loader whose loads always fail with a 503 error.
func UnavailableLoader(reason string) Loader {
	if reason == "" {
		reason = "model runtime not configured"
	}
	return unavailableLoader{reason: reason}
}

// ParseBoxes decodes the coordinates form field: a JSON list of
// [x1, y1, x2, y2] lists.
func ParseBoxes(s string) ([]Box, error) {
	var raw [][]float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, ErrValidation(msgBadCoordinates)
	}
	boxes := make([]Box, 0, len(raw))
	for _, r := range raw {
		if len(r) != 4 {
			return nil, ErrValidation(msgBadCoordinates)
		}
		boxes = append(boxes, Box{r[0], r[1], r[2], r[3]})
	}
	return boxes, nil
}
