package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visiond/internal/artifact"
	"visiond/internal/device"
	"visiond/internal/events"
	"visiond/internal/slot"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// tinyPNG returns a valid 2x2 red PNG.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil { t.Fatalf("encode: %v", err) }
	return buf.Bytes()
}

// fakePipeline renders a fixed image unless configured to fail.
type fakePipeline struct {
	variant slot.Variant
	img     []byte
	genErr  error
	panicky bool
	gate    chan struct{}
	steps   int
	stepped chan struct{}
	closed  atomic.Bool

	mu     sync.Mutex
	params []Params
}

func (p *fakePipeline) Generate(ctx context.Context, params Params, onStep func(step, total int)) ([]byte, error) {
	p.mu.Lock()
	p.params = append(p.params, params)
	p.mu.Unlock()
	for i := 1; i <= p.steps && onStep != nil; i++ {
		onStep(i, p.steps)
	}
	if p.stepped != nil {
		close(p.stepped)
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.panicky {
		panic("scheduler exploded")
	}
	if p.genErr != nil {
		return nil, p.genErr
	}
	return p.img, nil
}

func (p *fakePipeline) Close() error { p.closed.Store(true); return nil }

func (p *fakePipeline) lastParams() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.params) == 0 {
		return Params{}
	}
	return p.params[len(p.params)-1]
}

// fakeLoader hands out fakePipelines built by make.
type fakeLoader struct {
	mu      sync.Mutex
	loads   map[slot.Variant]int
	loadErr map[slot.Variant]error
	built   []*fakePipeline
	delay   time.Duration
	make    func(v slot.Variant) *fakePipeline
}

func newFakeLoader(mk func(v slot.Variant) *fakePipeline) *fakeLoader {
	return &fakeLoader{loads: map[slot.Variant]int{}, loadErr: map[slot.Variant]error{}, make: mk}
}

func (l *fakeLoader) Load(ctx context.Context, v slot.Variant) (Pipeline, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[v]++
	if err := l.loadErr[v]; err != nil {
		return nil, err
	}
	p := l.make(v)
	p.variant = v
	l.built = append(l.built, p)
	return p, nil
}

func (l *fakeLoader) count(v slot.Variant) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[v]
}

func (l *fakeLoader) setLoadErr(v slot.Variant, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.loadErr, v)
		return
	}
	l.loadErr[v] = err
}

func (l *fakeLoader) pipelines() []*fakePipeline {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakePipeline(nil), l.built...)
}

// fakeDevice counts cache clears and serves a configurable memory snapshot.
type fakeDevice struct {
	clears atomic.Int32
	info   device.MemoryInfo
	memErr error
}

func (d *fakeDevice) EmptyCache(context.Context) error { d.clears.Add(1); return nil }

func (d *fakeDevice) MemoryInfo(context.Context) (device.MemoryInfo, error) {
	if d.memErr != nil {
		return device.MemoryInfo{}, d.memErr
	}
	return d.info, nil
}

type harness struct {
	o      *Orchestrator
	loader *fakeLoader
	dev    *fakeDevice
	pub    *events.Memory
	store  *artifact.Store
}

func newHarness(t *testing.T, mk func(v slot.Variant) *fakePipeline) *harness {
	t.Helper()
	store, err := artifact.NewStore(artifact.Config{Dir: filepath.Join(t.TempDir(), "generated")})
	if err != nil { t.Fatalf("store: %v", err) }
	h := &harness{loader: newFakeLoader(mk), dev: &fakeDevice{memErr: device.ErrNoDevice}, pub: events.NewMemory(), store: store}
	h.o, err = New(Config{
		Loader:    h.loader,
		Device:    h.dev,
		Artifacts: store,
		Publisher: h.pub,
	})
	if err != nil { t.Fatalf("new orchestrator: %v", err) }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.o.Close(ctx)
	})
	return h
}

// waitTask blocks until the worker for id has exited.
func waitTask(t *testing.T, o *Orchestrator, id string) {
	t.Helper()
	if err := o.Wait(testCtx(t), id); err != nil { t.Fatalf("wait %s: %v", id, err) }
}
