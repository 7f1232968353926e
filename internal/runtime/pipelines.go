package runtime

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"visiond/internal/registry"
)

type createResponse struct {
	ID string `json:"id"`
}

// CreatePipeline loads a diffusion pipeline and returns its sidecar id.
func (c *Client) CreatePipeline(ctx context.Context, src registry.Source) (string, error) {
	var out createResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/pipelines", src, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("model runtime returned an empty pipeline id")
	}
	return out.ID, nil
}

// DeletePipeline unloads a pipeline. Unknown ids are not an error.
func (c *Client) DeletePipeline(ctx context.Context, id string) error {
	return c.deleteResource(ctx, "/v1/pipelines/"+url.PathEscape(id))
}

// GenerateRequest holds the text-to-image parameters.
type GenerateRequest struct {
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"num_inference_steps"`
	GuidanceScale float64 `json:"guidance_scale"`
	Stream        bool    `json:"stream"`
}

// streamLine is one NDJSON line of a streamed generation.
type streamLine struct {
	Step  int    `json:"step,omitempty"`
	Total int    `json:"total,omitempty"`
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Generate runs the pipeline and returns PNG bytes. When onStep is set the
// sidecar streams NDJSON progress lines ending with the base64 image.
func (c *Client) Generate(ctx context.Context, id string, req GenerateRequest, onStep func(step, total int)) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	req.Stream = onStep != nil
	resp, err := c.do(ctx, http.MethodPost, "/v1/pipelines/"+url.PathEscape(id)+"/generate", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt != "application/x-ndjson" {
		return io.ReadAll(resp.Body)
	}
	return readStream(ctx, resp.Body, onStep)
}

func readStream(ctx context.Context, body io.Reader, onStep func(step, total int)) ([]byte, error) {
	sc := bufio.NewScanner(body)
	// The final line carries the whole encoded image.
	sc.Buffer(make([]byte, 64*1024), 256<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg streamLine
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("model runtime: malformed stream line: %w", err)
		}
		switch {
		case msg.Error != "" || msg.Code != "":
			return nil, &StatusError{Status: http.StatusInternalServerError, Code: msg.Code, Message: msg.Error}
		case msg.Image != "":
			img, err := base64.StdEncoding.DecodeString(msg.Image)
			if err != nil {
				return nil, fmt.Errorf("model runtime: decode image: %w", err)
			}
			return img, nil
		case msg.Total > 0 && onStep != nil:
			onStep(msg.Step, msg.Total)
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("model runtime: read stream: %w", err)
	}
	return nil, errors.New("model runtime: stream ended without an image")
}

func (c *Client) deleteResource(ctx context.Context, path string) error {
	err := c.doJSON(ctx, http.MethodDelete, path, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	return err
}
