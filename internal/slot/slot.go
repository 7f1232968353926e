// Package slot implements a single-occupancy cache for heavyweight models.
//
// A Slot holds at most one loaded model (a Handle) at a time. Acquiring a
// different variant evicts the resident one first. Loads and evictions are
// serialized; callers asking for the variant that is already resident get it
// back without I/O. A Lease pins the handle while it is in use, and eviction
// waits for every outstanding lease unless a drain timeout is configured.
package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/events"
)

// Variant names a loadable model configuration, such as "fast" or "vit_b".
type Variant string

// Handle is a loaded model. Close releases everything it holds.
type Handle interface {
	Close() error
}

// Loader builds a Handle for a variant. On error it must release whatever it
// acquired before returning.
type Loader[H Handle] interface {
	Load(ctx context.Context, v Variant) (H, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc[H Handle] func(ctx context.Context, v Variant) (H, error)

func (f LoaderFunc[H]) Load(ctx context.Context, v Variant) (H, error) { return f(ctx, v) }

// CacheClearer releases cached device memory. device.Device satisfies it.
type CacheClearer interface {
	EmptyCache(ctx context.Context) error
}

// ErrNoVariant is returned by Acquire for an empty variant.
var ErrNoVariant = errors.New("slot: variant is required")

// Config configures a Slot.
type Config[H Handle] struct {
	// Name labels metrics, logs and events, for example "imagegen".
	Name   string
	Loader Loader[H]
	Cache  CacheClearer
	// DrainTimeout bounds how long eviction waits for leases. Zero waits
	// until every lease is released.
	DrainTimeout time.Duration
	Publisher    events.Publisher
	Logger       *zerolog.Logger
}

// Slot is a single-entry model cache.
type Slot[H Handle] struct {
	name         string
	loader       Loader[H]
	cache        CacheClearer
	drainTimeout time.Duration
	pub          events.Publisher
	log          zerolog.Logger

	// switchMu serializes load and evict sequences.
	switchMu sync.Mutex

	// mu guards the fields below. It is never held across I/O.
	mu       sync.Mutex
	resident Variant
	handle   H
	loaded   bool
	draining bool
	leases   int
	gen      uint64
}

// New returns an empty Slot.
func New[H Handle](cfg Config[H]) *Slot[H] {
	s := &Slot[H]{
		name:         cfg.Name,
		loader:       cfg.Loader,
		cache:        cfg.Cache,
		drainTimeout: cfg.DrainTimeout,
		pub:          events.OrNoop(cfg.Publisher),
		log:          zerolog.Nop(),
	}
	if s.name == "" {
		s.name = "default"
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("slot", s.name).Logger()
	}
	return s
}

// Acquire returns a lease on the handle for v, loading it if needed.
// The caller must Release the lease when done with the handle.
func (s *Slot[H]) Acquire(ctx context.Context, v Variant) (*Lease[H], error) {
	if v == "" {
		return nil, ErrNoVariant
	}
	if l := s.tryHit(v); l != nil {
		slotRequests.WithLabelValues(s.name, string(v), "hit").Inc()
		return l, nil
	}
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	// Another caller may have loaded v while we waited.
	if l := s.tryHit(v); l != nil {
		slotRequests.WithLabelValues(s.name, string(v), "hit").Inc()
		return l, nil
	}
	slotRequests.WithLabelValues(s.name, string(v), "miss").Inc()
	if _, err := s.evictLocked(ctx, "switch"); err != nil {
		s.log.Warn().Err(err).Msg("closing previous model failed; continuing with load")
	}
	return s.loadLocked(ctx, v)
}

// ReleaseAll evicts the resident model, if any, and clears device caches.
// It is idempotent. The slot is left empty even when closing the handle fails.
func (s *Slot[H]) ReleaseAll(ctx context.Context) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	evicted, err := s.evictLocked(ctx, "unload")
	if !evicted {
		s.clearCache(ctx)
	}
	return err
}

// Discard evicts v if it is still resident, waiting for its other leases.
// Callers use it after an inference failure that may have left the handle
// holding device memory. It is a no-op when v has already been replaced.
func (s *Slot[H]) Discard(ctx context.Context, v Variant) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	if cur, ok := s.Resident(); !ok || cur != v {
		return nil
	}
	_, err := s.evictLocked(ctx, "failure")
	return err
}

// Resident reports the loaded variant.
func (s *Slot[H]) Resident() (Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resident, s.loaded
}

// Loaded lists the loaded variants; it has at most one element.
func (s *Slot[H]) Loaded() []Variant {
	if v, ok := s.Resident(); ok {
		return []Variant{v}
	}
	return []Variant{}
}

// Leases returns the number of outstanding leases on the resident handle.
func (s *Slot[H]) Leases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leases
}

func (s *Slot[H]) tryHit(v Variant) *Lease[H] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.draining || s.resident != v {
		return nil
	}
	s.leases++
	return &Lease[H]{slot: s, handle: s.handle, variant: v, gen: s.gen}
}

// loadLocked loads v into the empty slot. switchMu must be held.
func (s *Slot[H]) loadLocked(ctx context.Context, v Variant) (*Lease[H], error) {
	if s.loader == nil {
		return nil, fmt.Errorf("slot %s: no loader configured", s.name)
	}
	log := s.log.With().Str("variant", string(v)).Logger()
	log.Info().Msg("loading model")
	s.publish("slot_load_start", v, nil)
	start := time.Now()
	h, err := s.loader.Load(ctx, v)
	dur := time.Since(start)
	if err == nil && any(h) == nil {
		err = errors.New("loader returned no handle")
	}
	if err != nil {
		s.clearCache(ctx)
		slotLoads.WithLabelValues(s.name, string(v), "error").Inc()
		log.Error().Err(err).Int64("dur_ms", dur.Milliseconds()).Msg("model load failed")
		s.publish("slot_load_error", v, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("load %s model: %w", v, err)
	}
	slotLoads.WithLabelValues(s.name, string(v), "ok").Inc()
	slotLoadDuration.WithLabelValues(s.name, string(v)).Observe(dur.Seconds())
	slotResident.WithLabelValues(s.name, string(v)).Set(1)

	s.mu.Lock()
	s.resident = v
	s.handle = h
	s.loaded = true
	s.gen++
	s.leases = 1
	l := &Lease[H]{slot: s, handle: h, variant: v, gen: s.gen}
	s.mu.Unlock()

	log.Info().Int64("dur_ms", dur.Milliseconds()).Msg("model ready")
	s.publish("slot_load_ready", v, map[string]any{"dur_ms": dur.Milliseconds()})
	return l, nil
}

// evictLocked drains and closes the resident handle. switchMu must be held.
// It reports whether anything was resident.
func (s *Slot[H]) evictLocked(ctx context.Context, reason string) (bool, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return false, nil
	}
	s.draining = true
	v := s.resident
	s.mu.Unlock()

	s.waitDrain(v)

	var zero H
	s.mu.Lock()
	h := s.handle
	s.handle = zero
	s.resident = ""
	s.loaded = false
	s.draining = false
	s.leases = 0
	s.gen++
	s.mu.Unlock()

	slotResident.WithLabelValues(s.name, string(v)).Set(0)
	slotEvictions.WithLabelValues(s.name, string(v), reason).Inc()
	err := h.Close()
	s.clearCache(ctx)
	fields := map[string]any{"reason": reason}
	if err != nil {
		fields["error"] = err.Error()
		s.log.Warn().Err(err).Str("variant", string(v)).Str("reason", reason).Msg("model close failed")
		err = fmt.Errorf("close %s model: %w", v, err)
	} else {
		s.log.Info().Str("variant", string(v)).Str("reason", reason).Msg("model evicted")
	}
	s.publish("slot_evict", v, fields)
	return true, err
}

func (s *Slot[H]) waitDrain(v Variant) {
	var deadline time.Time
	if s.drainTimeout > 0 {
		deadline = time.Now().Add(s.drainTimeout)
	}
	for {
		s.mu.Lock()
		n := s.leases
		s.mu.Unlock()
		if n == 0 {
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			s.log.Warn().Str("variant", string(v)).Int("leases", n).Msg("drain timeout; evicting with leases outstanding")
			s.publish("slot_drain_timeout", v, map[string]any{"leases": n})
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *Slot[H]) release(gen uint64) {
	s.mu.Lock()
	if gen == s.gen && s.leases > 0 {
		s.leases--
	}
	s.mu.Unlock()
}

func (s *Slot[H]) clearCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.EmptyCache(ctx); err != nil {
		s.log.Debug().Err(err).Msg("device cache clear failed")
	}
}

func (s *Slot[H]) publish(name string, v Variant, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["slot"] = s.name
	s.pub.Publish(events.Event{Scope: events.ScopeSlot, Name: name, Variant: string(v), Fields: fields, Time: time.Now()})
}

// Lease pins a loaded handle until Release is called.
type Lease[H Handle] struct {
	slot    *Slot[H]
	handle  H
	variant Variant
	gen     uint64
	once    sync.Once
}

// Handle returns the leased model.
func (l *Lease[H]) Handle() H { return l.handle }

// Variant returns the leased model's variant.
func (l *Lease[H]) Variant() Variant { return l.variant }

// Release unpins the handle. Calling it more than once is a no-op.
func (l *Lease[H]) Release() {
	l.once.Do(func() { l.slot.release(l.gen) })
}
