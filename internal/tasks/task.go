// Package tasks holds the in-memory task records that back asynchronous
// generation requests: a mutex-guarded Store keyed by task id and a bounded
// recency History used for enumeration.
package tasks

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Task is a value copy of a task record. ResultURL is non-empty iff the task
// completed; Error is non-empty iff it failed.
type Task struct {
	ID        string
	Status    Status
	Progress  float64
	ResultURL string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the task is still pending or running.
func (t Task) Active() bool { return !t.Status.Terminal() }

// Update carries a partial modification; nil fields are left unchanged.
type Update struct {
	Status    *Status
	Progress  *float64
	ResultURL *string
	Error     *string
}
