package imagegen

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"visiond/internal/device"
	"visiond/internal/slot"
	"visiond/pkg/types"
)

const msgGPUInfoUnavailable = "Could not retrieve GPU information"

// AdminStatus builds the /status report: slot residency, device memory and a
// consistent partition of the task store.
func (o *Orchestrator) AdminStatus(ctx context.Context) types.ServerStatus {
	rep := o.store.Report()
	tasksTracked.Set(float64(rep.Total))
	resp := types.ServerStatus{
		LoadedModels:         lo.Map(o.slot.Loaded(), func(v slot.Variant, _ int) string { return string(v) }),
		GPUMemory:            o.gpuMemory(ctx),
		ActiveTasks:          rep.Active,
		RecentCompletedTasks: rep.RecentCompleted,
		RecentFailedTasks:    rep.RecentFailed,
		TotalTasksTracked:    rep.Total,
	}
	if v, ok := o.slot.Resident(); ok {
		s := string(v)
		resp.CurrentModelLoaded = &s
	}
	return resp
}

func (o *Orchestrator) gpuMemory(ctx context.Context) *types.GPUMemory {
	info, err := o.device.MemoryInfo(ctx)
	if err != nil {
		if errors.Is(err, device.ErrNoDevice) {
			return nil
		}
		o.log.Warn().Err(err).Msg("device memory query failed")
		return &types.GPUMemory{Error: msgGPUInfoUnavailable}
	}
	m := &types.GPUMemory{Total: info.Total, Reserved: info.Reserved, Allocated: info.Allocated, Free: info.Free}
	if info.Host != nil {
		m.Host = &types.HostMemory{Total: info.Host.Total, Available: info.Host.Available, Used: info.Host.Used}
	}
	return m
}

// AdminUnload evicts the resident pipeline and clears device caches.
func (o *Orchestrator) AdminUnload(ctx context.Context) error {
	if err := o.slot.ReleaseAll(ctx); err != nil {
		o.log.Error().Err(err).Msg("unload failed")
		return err
	}
	o.log.Info().Msg("all models unloaded")
	return nil
}

// Resident reports the loaded tier variant.
func (o *Orchestrator) Resident() (slot.Variant, bool) { return o.slot.Resident() }
