package imagegen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/artifact"
	"visiond/internal/device"
	"visiond/internal/events"
	"visiond/internal/slot"
	"visiond/internal/tasks"
	"visiond/pkg/types"
)

// Orchestrator accepts generation requests, runs each on its own worker
// goroutine and answers status, result and admin queries.
type Orchestrator struct {
	store        *tasks.Store
	slot         *slot.Slot[Pipeline]
	device       device.Device
	artifacts    *artifact.Store
	pub          events.Publisher
	log          zerolog.Logger
	resultPrefix string

	mu      sync.Mutex
	closed  bool
	workers map[string]*workerHandle
	wg      sync.WaitGroup
}

// workerHandle tracks one in-flight task.
type workerHandle struct {
	id   string
	tier Tier
	done chan struct{}
}

// Submit validates the request, records a pending task and starts its worker.
// It returns the new task id without waiting for generation.
func (o *Orchestrator) Submit(prompt, mode string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrValidation(msgPromptRequired)
	}
	tier, ok := ParseTier(mode)
	if !ok {
		return "", ErrValidation(msgInvalidMode)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", shuttingDownError{}
	}
	t := o.store.Create()
	h := &workerHandle{id: t.ID, tier: tier, done: make(chan struct{})}
	o.workers[t.ID] = h
	o.wg.Add(1)
	tasksSubmitted.WithLabelValues(tier.Mode).Inc()
	tasksTracked.Set(float64(o.store.Len()))
	o.log.Info().Str("task_id", t.ID).Str("mode", tier.Mode).Msg("task accepted")
	o.publish("task_submitted", t.ID, tier.Variant, nil)
	go o.run(h, prompt)
	return t.ID, nil
}

// Query returns the client-facing status of task id.
func (o *Orchestrator) Query(id string) (types.TaskStatus, error) {
	t, ok := o.store.Get(id)
	if !ok {
		return types.TaskStatus{}, ErrTaskNotFound(id)
	}
	return statusView(t), nil
}

func statusView(t tasks.Task) types.TaskStatus {
	v := types.TaskStatus{TaskID: t.ID, Status: string(t.Status), Progress: t.Progress}
	if t.Error != "" {
		msg := t.Error
		v.Error = &msg
	}
	if t.ResultURL != "" {
		u := t.ResultURL
		v.ResultURL = &u
	}
	return v
}

// FetchResult opens the generated image of a completed task. The caller must
// close the returned file.
func (o *Orchestrator) FetchResult(id string) (*artifact.File, error) {
	t, ok := o.store.Get(id)
	if !ok {
		return nil, ErrTaskNotFound(id)
	}
	switch t.Status {
	case tasks.StatusFailed:
		return nil, &TaskFailedError{ID: id, Message: t.Error}
	case tasks.StatusCompleted:
	default:
		return nil, notCompletedError{id: id}
	}
	f, err := o.artifacts.Open(resultName(id))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrArtifactMissing(id)
		}
		return nil, err
	}
	return f, nil
}

// Ready reports whether new submissions are accepted.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

// InFlight returns the number of running workers.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.workers)
}

// Close stops accepting submissions and waits for in-flight workers until ctx
// is done. Workers are never cancelled. The resident pipeline is released
// once every worker has finished.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	pending := len(o.workers)
	o.mu.Unlock()
	if pending > 0 {
		o.log.Info().Int("inflight", pending).Msg("waiting for in-flight tasks")
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.mu.Lock()
		left := len(o.workers)
		o.mu.Unlock()
		o.log.Warn().Int("inflight", left).Msg("shutdown drain timed out")
		return ctx.Err()
	}
	return o.slot.ReleaseAll(ctx)
}

// Wait blocks until task id has finished its worker or ctx is done. Unknown
// and already-finished ids return immediately.
func (o *Orchestrator) Wait(ctx context.Context, id string) error {
	o.mu.Lock()
	h := o.workers[id]
	o.mu.Unlock()
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resultName(id string) string { return id + ".png" }

func (o *Orchestrator) publish(name, taskID string, v slot.Variant, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	o.pub.Publish(events.Event{Scope: events.ScopeTasks, Name: name, TaskID: taskID, Variant: string(v), Fields: fields, Time: time.Now()})
}
