package imagegen

import (
	"errors"
	"net/http"
)

// Messages surfaced to HTTP clients.
const (
	OOMMessage         = "GPU memory exhausted. Please try a smaller image size or wait a few minutes."
	msgTaskNotFound    = "Task not found"
	msgNotCompleted    = "Task not yet completed"
	msgArtifactMissing = "Result file not found"
	msgShuttingDown    = "server is shutting down"
	msgPromptRequired  = "Prompt is required"
	msgInvalidMode     = "Invalid mode"
)

// validationError rejects a request before any task is created (400).
type validationError struct{ msg string }

func (e validationError) Error() string   { return e.msg }
func (e validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation constructs a validation error.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err rejects the request as malformed.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// taskNotFoundError signals an unknown task id or a missing artifact (404).
type taskNotFoundError struct {
	id  string
	msg string
}

func (e taskNotFoundError) Error() string   { return e.msg }
func (e taskNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrTaskNotFound returns the error for an unknown task id.
func ErrTaskNotFound(id string) error { return taskNotFoundError{id: id, msg: msgTaskNotFound} }

// ErrArtifactMissing returns the error for a completed task whose file is gone.
func ErrArtifactMissing(id string) error { return taskNotFoundError{id: id, msg: msgArtifactMissing} }

// IsTaskNotFound reports whether err maps to 404.
func IsTaskNotFound(err error) bool {
	var nf taskNotFoundError
	return errors.As(err, &nf)
}

// notCompletedError is returned when fetching a result still in flight (409).
type notCompletedError struct{ id string }

func (e notCompletedError) Error() string   { return msgNotCompleted }
func (e notCompletedError) StatusCode() int { return http.StatusConflict }

// IsNotCompleted reports whether err means the task is still running.
func IsNotCompleted(err error) bool {
	var nc notCompletedError
	return errors.As(err, &nc)
}

// TaskFailedError carries the stored failure of a task (500).
type TaskFailedError struct {
	ID      string
	Message string
}

func (e *TaskFailedError) Error() string   { return e.Message }
func (e *TaskFailedError) StatusCode() int { return http.StatusInternalServerError }

// shuttingDownError rejects submissions after Close (503).
type shuttingDownError struct{}

func (shuttingDownError) Error() string   { return msgShuttingDown }
func (shuttingDownError) StatusCode() int { return http.StatusServiceUnavailable }

// IsShuttingDown reports whether err rejects work during shutdown.
func IsShuttingDown(err error) bool {
	var sd shuttingDownError
	return errors.As(err, &sd)
}

// dependencyUnavailableError signals a missing external dependency (the model
// runtime) so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string   { return e.msg }
func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var du dependencyUnavailableError
	return errors.As(err, &du)
}
