package imagegen

import (
	"encoding/json"
	"errors"
	"testing"

	"visiond/internal/device"
	"visiond/internal/slot"
)

func TestAdminStatus_Empty(t *testing.T) {
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	st := h.o.AdminStatus(testCtx(t))
	if st.CurrentModelLoaded != nil || st.GPUMemory != nil { t.Fatalf("st=%+v", st) }
	b, err := json.Marshal(st)
	if err != nil { t.Fatalf("marshal: %v", err) }
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["current_model_loaded"] != nil || m["gpu_memory"] != nil { t.Fatalf("json=%s", b) }
	for _, k := range []string{"loaded_models", "active_tasks", "recent_completed_tasks", "recent_failed_tasks"} {
		if _, ok := m[k].([]any); !ok { t.Fatalf("%s not an array: %s", k, b) }
	}
}

func TestAdminStatus_PartitionsTasks(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	ok, _ := h.o.Submit("a", "fast")
	waitTask(t, h.o, ok)
	h.loader.make = func(slot.Variant) *fakePipeline { return &fakePipeline{genErr: errors.New("boom")} }
	h.o.AdminUnload(testCtx(t))
	bad, _ := h.o.Submit("b", "fast")
	waitTask(t, h.o, bad)
	h.loader.make = func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t), gate: gate} }
	h.o.AdminUnload(testCtx(t))
	busy, _ := h.o.Submit("c", "fast")

	st := h.o.AdminStatus(testCtx(t))
	if st.TotalTasksTracked != 3 { t.Fatalf("total=%d", st.TotalTasksTracked) }
	if len(st.ActiveTasks) != 1 || st.ActiveTasks[0] != busy { t.Fatalf("active=%v", st.ActiveTasks) }
	if len(st.RecentCompletedTasks) != 1 || st.RecentCompletedTasks[0] != ok { t.Fatalf("completed=%v", st.RecentCompletedTasks) }
	if len(st.RecentFailedTasks) != 1 || st.RecentFailedTasks[0] != bad { t.Fatalf("failed=%v", st.RecentFailedTasks) }
	close(gate)
	waitTask(t, h.o, busy)
}

func TestAdminStatus_GPUMemory(t *testing.T) {
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	h.dev.memErr = nil
	h.dev.info = device.MemoryInfo{Total: 24 << 30, Reserved: 8 << 30, Allocated: 6 << 30, Host: &device.HostMemory{Total: 64 << 30, Available: 32 << 30}}
	g := h.o.AdminStatus(testCtx(t)).GPUMemory
	if g == nil || g.Total != 24<<30 || g.Reserved != 8<<30 || g.Allocated != 6<<30 || g.Host == nil || g.Host.Available != 32<<30 { t.Fatalf("gpu=%+v", g) }
}

func TestAdminStatus_GPUQueryFailure(t *testing.T) {
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	h.dev.memErr = errors.New("driver wedged")
	g := h.o.AdminStatus(testCtx(t)).GPUMemory
	if g == nil || g.Error != msgGPUInfoUnavailable || g.Total != 0 { t.Fatalf("gpu=%+v", g) }
}

func TestAdminUnload(t *testing.T) {
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	if err := h.o.AdminUnload(testCtx(t)); err != nil { t.Fatalf("unload empty: %v", err) }
	id, _ := h.o.Submit("x", "slow")
	waitTask(t, h.o, id)
	before := h.dev.clears.Load()
	if err := h.o.AdminUnload(testCtx(t)); err != nil { t.Fatalf("unload: %v", err) }
	if _, ok := h.o.Resident(); ok { t.Fatalf("still resident") }
	if !h.loader.pipelines()[0].closed.Load() { t.Fatalf("pipeline not closed") }
	if h.dev.clears.Load() <= before { t.Fatalf("cache not cleared on unload") }
	if err := h.o.AdminUnload(testCtx(t)); err != nil { t.Fatalf("second unload: %v", err) }
}

func TestAdminStatus_GPUMemoryKeepsZeroCounters(t *testing.T) {
	h := newHarness(t, func(slot.Variant) *fakePipeline { return &fakePipeline{img: tinyPNG(t)} })
	h.dev.memErr = nil
	h.dev.info = device.MemoryInfo{Total: 24 << 30}
	id, _ := h.o.Submit("x", "fast")
	waitTask(t, h.o, id)
	if err := h.o.AdminUnload(testCtx(t)); err != nil { t.Fatalf("unload: %v", err) }
	b, _ := json.Marshal(h.o.AdminStatus(testCtx(t)))
	var m struct{ GPUMemory map[string]any `json:"gpu_memory"` }
	if err := json.Unmarshal(b, &m); err != nil { t.Fatalf("json: %v", err) }
	for _, k := range []string{"total", "reserved", "allocated", "free"} {
		if _, ok := m.GPUMemory[k]; !ok { t.Fatalf("%s missing: %s", k, b) }
	}
	if m.GPUMemory["allocated"] != float64(0) || m.GPUMemory["free"] != float64(0) { t.Fatalf("json=%s", b) }
	if _, ok := m.GPUMemory["error"]; ok { t.Fatalf("error key on a snapshot: %s", b) }

	h.dev.memErr = errors.New("driver wedged")
	b, _ = json.Marshal(h.o.AdminStatus(testCtx(t)))
	m.GPUMemory = nil
	if err := json.Unmarshal(b, &m); err != nil { t.Fatalf("json: %v", err) }
	if len(m.GPUMemory) != 1 || m.GPUMemory["error"] != msgGPUInfoUnavailable { t.Fatalf("placeholder json=%s", b) }
}
