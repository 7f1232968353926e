// Package events carries lifecycle notifications for tasks and model slots.
package events

import "time"

// Event is a lifecycle notification.
// Name is the event kind (for example "task_completed" or "slot_evict"); Scope
// groups it ("tasks" or "slot"); Fields holds optional key/values.
type Event struct {
	Scope   string         `json:"scope"`
	Name    string         `json:"name"`
	TaskID  string         `json:"task_id,omitempty"`
	Variant string         `json:"variant,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	Time    time.Time      `json:"time"`
}

const (
	ScopeTasks = "tasks"
	ScopeSlot  = "slot"
)

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(Event) {}

// OrNoop returns p, or Noop when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return Noop{}
	}
	return p
}
