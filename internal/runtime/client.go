// Package runtime is the HTTP client for the model runtime sidecar, the
// process that owns the accelerator and runs diffusion and segmentation
// inference. It implements device.Device for the sidecar's accelerator.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/device"
)

// ErrUnavailable is returned when the sidecar cannot be reached.
var ErrUnavailable = errors.New("model runtime unavailable")

// Config configures a Client.
type Config struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	// RequestTimeout bounds each call; zero means no deadline.
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

// Client talks to the sidecar over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	http       *http.Client
	log        zerolog.Logger
}

var _ device.Device = (*Client)(nil)

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("runtime: base URL is required")
	}
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		reqTimeout: cfg.RequestTimeout,
		// Deadlines come from the request context.
		http: &http.Client{Transport: tr, Timeout: 0},
		log:  zerolog.Nop(),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "runtime").Logger()
	}
	return c, nil
}

// BaseURL returns the sidecar address.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping checks that the sidecar answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError is a non-2xx sidecar response. Out-of-memory responses unwrap
// to device.ErrOutOfMemory.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("model runtime: %s (http %d)", msg, e.Status)
}

// OutOfMemory reports whether the sidecar ran out of accelerator memory.
func (e *StatusError) OutOfMemory() bool {
	return e.Status == http.StatusInsufficientStorage || e.Code == "out_of_memory"
}

func (e *StatusError) Unwrap() error {
	if e.OutOfMemory() {
		return device.ErrOutOfMemory
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{Status: resp.StatusCode}
	var eb errorBody
	if json.Unmarshal(b, &eb) == nil && (eb.Error != "" || eb.Code != "") {
		se.Message, se.Code = eb.Error, eb.Code
	} else {
		se.Message = strings.TrimSpace(string(b))
	}
	return se
}

// do sends a JSON request and returns a 2xx response; the caller closes it.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Int64("dur_ms", time.Since(start).Milliseconds()).Msg("runtime call")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// doJSON sends body and decodes a JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.reqTimeout > 0 {
		return context.WithTimeout(ctx, c.reqTimeout)
	}
	return ctx, func() {}
}

// EmptyCache asks the sidecar to release cached accelerator memory.
func (c *Client) EmptyCache(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/device/empty-cache", struct{}{}, nil)
}

type memoryResponse struct {
	Available bool   `json:"available"`
	Total     uint64 `json:"total"`
	Reserved  uint64 `json:"reserved"`
	Allocated uint64 `json:"allocated"`
	Free      uint64 `json:"free"`
}

// MemoryInfo returns the sidecar's accelerator memory, or device.ErrNoDevice
// when it runs without one.
func (c *Client) MemoryInfo(ctx context.Context) (device.MemoryInfo, error) {
	var m memoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/device/memory", nil, &m); err != nil {
		return device.MemoryInfo{}, err
	}
	if !m.Available {
		return device.MemoryInfo{}, device.ErrNoDevice
	}
	return device.MemoryInfo{Total: m.Total, Reserved: m.Reserved, Allocated: m.Allocated, Free: m.Free}, nil
}
