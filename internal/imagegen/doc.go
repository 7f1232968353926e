// Package imagegen runs text-to-image generation as asynchronous tasks.
// It is structured into small files by concern:
//
//   - orchestrator.go: Orchestrator type, constructor, Submit/Query/FetchResult, Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - worker.go: the per-task goroutine and its failure containment.
//   - tiers.go: the fast and slow quality tiers and their parameters.
//   - pipeline.go: the Pipeline interface workers call into.
//   - pipeline_runtime.go: Pipeline backed by the model runtime sidecar.
//   - status_report.go: AdminStatus/AdminUnload.
//   - errors.go: error types and helpers (IsValidation, IsTaskNotFound, ...).
//   - metrics.go: prometheus collectors.
//
// One heavyweight pipeline is resident at a time, held in a slot.Slot. A task
// for the other tier evicts it. Task records live in a tasks.Store and are
// only mutated through the Orchestrator's update path.
package imagegen
