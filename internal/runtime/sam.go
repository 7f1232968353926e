package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"visiond/internal/registry"
)

// CreateSAM loads a segmentation model and returns its sidecar id.
func (c *Client) CreateSAM(ctx context.Context, src registry.Source) (string, error) {
	var out createResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sam", src, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("model runtime returned an empty sam id")
	}
	return out.ID, nil
}

// DeleteSAM unloads a segmentation model. Unknown ids are not an error.
func (c *Client) DeleteSAM(ctx context.Context, id string) error {
	return c.deleteResource(ctx, "/v1/sam/"+url.PathEscape(id))
}

type predictRequest struct {
	Image string     `json:"image"`
	Box   [4]float64 `json:"box"`
}

type wireMask struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data"`
}

type predictResponse struct {
	Masks []wireMask `json:"masks"`
}

// Mask is a binary mask, one byte per pixel in row-major order; non-zero
// bytes are inside the mask.
type Mask struct {
	Width  int
	Height int
	Data   []byte
}

// PredictSAM segments the encoded image inside box (x1, y1, x2, y2).
func (c *Client) PredictSAM(ctx context.Context, id string, image []byte, box [4]float64) ([]Mask, error) {
	req := predictRequest{Image: base64.StdEncoding.EncodeToString(image), Box: box}
	var out predictResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sam/"+url.PathEscape(id)+"/predict", req, &out); err != nil {
		return nil, err
	}
	masks := make([]Mask, 0, len(out.Masks))
	for i, m := range out.Masks {
		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return nil, fmt.Errorf("model runtime: mask %d: %w", i, err)
		}
		if m.Width <= 0 || m.Height <= 0 || len(data) != m.Width*m.Height {
			return nil, fmt.Errorf("model runtime: mask %d: %dx%d with %d bytes", i, m.Width, m.Height, len(data))
		}
		masks = append(masks, Mask{Width: m.Width, Height: m.Height, Data: data})
	}
	return masks, nil
}
