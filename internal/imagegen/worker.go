package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"visiond/internal/device"
	"visiond/internal/slot"
	"visiond/internal/tasks"
)

// run is the worker goroutine for one task. Every exit path ends in a
// terminal update.
func (o *Orchestrator) run(h *workerHandle, prompt string) {
	defer o.finish(h)
	ctx := context.Background()
	log := o.log.With().Str("task_id", h.id).Str("variant", string(h.tier.Variant)).Logger()
	start := time.Now()

	o.update(h.id, tasks.Update{Status: lo.ToPtr(tasks.StatusRunning), Progress: lo.ToPtr(0.0)})
	o.publish("task_started", h.id, h.tier.Variant, nil)
	log.Debug().Msg("task running")

	url, err := o.generate(ctx, h, prompt)
	dur := time.Since(start)
	taskDuration.WithLabelValues(h.tier.Mode).Observe(dur.Seconds())
	if err != nil {
		msg := failureMessage(err)
		o.update(h.id, tasks.Update{Status: lo.ToPtr(tasks.StatusFailed), Error: lo.ToPtr(msg)})
		tasksFinished.WithLabelValues(h.tier.Mode, string(tasks.StatusFailed)).Inc()
		log.Error().Err(err).Int64("dur_ms", dur.Milliseconds()).Bool("oom", device.IsOutOfMemory(err)).Msg("task failed")
		o.publish("task_failed", h.id, h.tier.Variant, map[string]any{"error": msg, "dur_ms": dur.Milliseconds()})
		return
	}
	o.update(h.id, tasks.Update{Status: lo.ToPtr(tasks.StatusCompleted), Progress: lo.ToPtr(1.0), ResultURL: lo.ToPtr(url)})
	tasksFinished.WithLabelValues(h.tier.Mode, string(tasks.StatusCompleted)).Inc()
	log.Info().Int64("dur_ms", dur.Milliseconds()).Msg("task completed")
	o.publish("task_completed", h.id, h.tier.Variant, map[string]any{"result_url": url, "dur_ms": dur.Milliseconds()})
}

// generate acquires the tier's pipeline, renders the prompt and stores the
// image. Panics are converted to errors; the device cache is cleared on every
// exit. A failed render evicts the pipeline so the next task loads a clean one.
func (o *Orchestrator) generate(ctx context.Context, h *workerHandle, prompt string) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	defer o.clearCache(ctx, h.id)

	lease, err := o.slot.Acquire(ctx, h.tier.Variant)
	if err != nil {
		return "", err
	}
	img, err := o.render(ctx, h, lease, prompt)
	// The lease must be released before Discard, which waits for it.
	lease.Release()
	if err != nil {
		if derr := o.slot.Discard(ctx, h.tier.Variant); derr != nil {
			o.log.Warn().Err(derr).Str("task_id", h.id).Msg("discarding failed pipeline")
		}
		return "", err
	}
	if len(img) == 0 {
		return "", errors.New("pipeline returned an empty image")
	}
	if _, err := o.artifacts.Save(ctx, resultName(h.id), img); err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	return o.resultPrefix + h.id, nil
}

func (o *Orchestrator) render(ctx context.Context, h *workerHandle, lease *slot.Lease[Pipeline], prompt string) (img []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	return lease.Handle().Generate(ctx, h.tier.Params(prompt), func(step, total int) {
		if total <= 0 {
			return
		}
		o.update(h.id, tasks.Update{Progress: lo.ToPtr(float64(step) / float64(total))})
	})
}

// update writes through the store; rejected updates are logged by the store.
func (o *Orchestrator) update(id string, u tasks.Update) {
	_, _ = o.store.Update(id, u)
}

func (o *Orchestrator) clearCache(ctx context.Context, id string) {
	if err := o.device.EmptyCache(ctx); err != nil {
		o.log.Debug().Err(err).Str("task_id", id).Msg("device cache clear failed")
	}
}

func (o *Orchestrator) finish(h *workerHandle) {
	o.mu.Lock()
	delete(o.workers, h.id)
	o.mu.Unlock()
	close(h.done)
	o.wg.Done()
}

// failureMessage is the error text stored on a failed task.
func failureMessage(err error) string {
	if device.IsOutOfMemory(err) {
		return OOMMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "generation failed"
}
