package types

import "encoding/json"

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Required text prompt describing the image.
	// example: a red cube on a wooden table
	Prompt string `json:"prompt" example:"a red cube on a wooden table"`
	// Quality tier: "fast" (768x768, 20 steps) or "slow" (1024x1024, 28 steps).
	// Defaults to "fast" when omitted.
	// example: fast
	Mode *string `json:"mode,omitempty" example:"fast" enums:"fast,slow"`
}

// GenerateResponse acknowledges an accepted generation request.
type GenerateResponse struct {
	// Identifier to poll with GET /status/{task_id}.
	// example: 3f0c8a52-6c57-4c1e-9a51-1f7d2f0b6c11
	TaskID string `json:"task_id" example:"3f0c8a52-6c57-4c1e-9a51-1f7d2f0b6c11"`
	// Always "accepted".
	// example: accepted
	Status string `json:"status" example:"accepted"`
}

// TaskStatus is the response of GET /status/{task_id}.
type TaskStatus struct {
	// example: 3f0c8a52-6c57-4c1e-9a51-1f7d2f0b6c11
	TaskID string `json:"task_id" example:"3f0c8a52-6c57-4c1e-9a51-1f7d2f0b6c11"`
	// One of pending, running, completed, failed.
	// example: running
	Status string `json:"status" example:"running" enums:"pending,running,completed,failed"`
	// Fraction complete in [0,1].
	// example: 0.45
	Progress float64 `json:"progress" example:"0.45"`
	// Failure message; null unless status is failed.
	Error *string `json:"error"`
	// Location of the generated image; null unless status is completed.
	// example: /result/3f0c8a52-6c57-4c1e-9a51-1f7d2f0b6c11
	ResultURL *string `json:"result_url"`
}

// GPUMemory is the accelerator snapshot in GET /status. When the device
// cannot be queried only Error is set, and only Error is encoded.
type GPUMemory struct {
	Total     uint64      `json:"total" example:"25769803776"`
	Reserved  uint64      `json:"reserved" example:"8589934592"`
	Allocated uint64      `json:"allocated" example:"7516192768"`
	Free      uint64      `json:"free" example:"17179869184"`
	Host      *HostMemory `json:"host,omitempty"`
	// example: Could not retrieve GPU information
	Error string `json:"error,omitempty"`
}

// MarshalJSON encodes the error placeholder as {"error": ...} alone and a
// snapshot with all four counters, zeros included.
func (m GPUMemory) MarshalJSON() ([]byte, error) {
	if m.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{m.Error})
	}
	type snapshot GPUMemory
	return json.Marshal(snapshot(m))
}

// HostMemory is system RAM in bytes.
type HostMemory struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
	Used      uint64 `json:"used"`
}

// ServerStatus is the response of GET /status.
type ServerStatus struct {
	// Variant currently resident in the model slot, or null.
	// example: fast
	CurrentModelLoaded *string `json:"current_model_loaded" example:"fast"`
	// Loaded variants; at most one.
	LoadedModels []string `json:"loaded_models"`
	// Accelerator memory, null when the host has no accelerator.
	GPUMemory *GPUMemory `json:"gpu_memory"`
	// Pending and running task ids, oldest first.
	ActiveTasks []string `json:"active_tasks"`
	// Completed task ids among the most recent submissions.
	RecentCompletedTasks []string `json:"recent_completed_tasks"`
	// Failed task ids among the most recent submissions.
	RecentFailedTasks []string `json:"recent_failed_tasks"`
	// Number of tasks tracked since start.
	// example: 12
	TotalTasksTracked int `json:"total_tasks_tracked" example:"12"`
}

// UnloadResponse is the success payload of POST /unload.
type UnloadResponse struct {
	// example: All models unloaded
	Status string `json:"status" example:"All models unloaded"`
}

// ProcessResponse lists the segmented images produced by POST /process.
type ProcessResponse struct {
	// File names to fetch with GET /processed/{filename}.
	Images []string `json:"images"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Invalid mode. Use 'fast' or 'slow'
	Error string `json:"error" example:"Invalid mode. Use 'fast' or 'slow'"`
	// Additional detail, when available.
	Details string `json:"details,omitempty"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
