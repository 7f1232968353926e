// Package segment cuts objects out of uploaded images. Each request prompts
// a SAM model with bounding boxes and writes one transparent PNG per
// predicted mask.
package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/artifact"
	"visiond/internal/common/fsutil"
	"visiond/internal/device"
	"visiond/internal/events"
	"visiond/internal/registry"
	"visiond/internal/slot"
)

// Upload is the image part of a process request.
type Upload struct {
	Filename string
	Data     []byte
}

// Config configures a Service.
type Config struct {
	// Uploads keeps the raw uploaded images. Required.
	Uploads *artifact.Store
	// Processed holds cutouts; it is emptied at the start of every request.
	// Required.
	Processed *artifact.Store
	// Loader builds the model; nil selects UnavailableLoader.
	Loader Loader
	// ModelType selects the SAM variant kept resident.
	ModelType string
	Device    device.Device
	Publisher events.Publisher
	Logger    *zerolog.Logger
	Clock     func() time.Time
}

// Service runs segmentation requests against a resident SAM model.
type Service struct {
	uploads   *artifact.Store
	processed *artifact.Store
	slot      *slot.Slot[Model]
	variant   slot.Variant
	log       zerolog.Logger
	clock     func() time.Time
}

// New constructs a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Uploads == nil || cfg.Processed == nil {
		return nil, errors.New("segment: upload and processed stores are required")
	}
	s := &Service{
		uploads:   cfg.Uploads,
		processed: cfg.Processed,
		variant:   slot.Variant(cfg.ModelType),
		log:       zerolog.Nop(),
		clock:     cfg.Clock,
	}
	if s.variant == "" {
		s.variant = registry.DefaultSAMModelType
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("component", "segment").Logger()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	loader := cfg.Loader
	if loader == nil {
		loader = UnavailableLoader("")
	}
	dev := cfg.Device
	if dev == nil {
		dev = device.None{}
	}
	s.slot = slot.New(slot.Config[Model]{
		Name:      "segment",
		Loader:    loader,
		Cache:     dev,
		Publisher: cfg.Publisher,
		Logger:    &s.log,
	})
	return s, nil
}

// Process segments up.Data once per box and returns the written cutout
// names, ordered by box then mask.
func (s *Service) Process(ctx context.Context, up Upload, boxes []Box) (names []string, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case IsValidation(err):
			outcome = "invalid"
		case err != nil:
			outcome = "error"
		}
		requests.WithLabelValues(outcome).Inc()
		ev := s.log.Info()
		if err != nil {
			ev = s.log.Warn().Err(err)
		}
		ev.Str("upload", up.Filename).Int("boxes", len(boxes)).Int("cutouts", len(names)).Int64("dur_ms", time.Since(start).Milliseconds()).Msg("segmentation request")
	}()

	name := fsutil.BaseName(up.Filename)
	if strings.TrimSpace(up.Filename) == "" || name == "" {
		return nil, ErrValidation(msgNoFile)
	}
	if n, err := s.processed.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear processed cutouts")
	} else if n > 0 {
		s.log.Debug().Int("removed", n).Msg("processed cutouts cleared")
	}
	if _, err := s.uploads.Save(ctx, name, up.Data); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, ErrValidation(msgImageLoadFailed)
	}

	lease, err := s.slot.Acquire(ctx, s.variant)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	prefix := cutoutPrefix(s.clock())
	names = []string{}
	for i, box := range boxes {
		masks, err := lease.Handle().Predict(ctx, up.Data, box)
		if err != nil {
			return names, fmt.Errorf("predict box %d: %w", i, err)
		}
		for j, m := range masks {
			out, err := cutout(src, m)
			if err != nil {
				return names, fmt.Errorf("box %d mask %d: %w", i, j, err)
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, out); err != nil {
				return names, fmt.Errorf("encode cutout: %w", err)
			}
			fn := fmt.Sprintf("%s_%d_%d.png", prefix, i, j)
			if _, err := s.processed.Save(ctx, fn, buf.Bytes()); err != nil {
				return names, err
			}
			cutouts.Inc()
			names = append(names, fn)
		}
	}
	return names, nil
}

// cutoutPrefix names a request's outputs segmented_YYYYmmdd_HHMMSS_micros.
func cutoutPrefix(t time.Time) string {
	return fmt.Sprintf("segmented_%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

// Open returns a processed cutout. Unknown or unsafe names return
// artifact.ErrNotFound.
func (s *Service) Open(name string) (*artifact.File, error) {
	return s.processed.Open(name)
}

// Resident reports whether the model is loaded.
func (s *Service) Resident() bool {
	_, ok := s.slot.Resident()
	return ok
}

// Unload releases the model and clears device caches.
func (s *Service) Unload(ctx context.Context) error {
	return s.slot.ReleaseAll(ctx)
}
