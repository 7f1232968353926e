package tasks

// DefaultHistorySize is the History capacity used when none is configured.
const DefaultHistorySize = 100

// History is a fixed-capacity ring of task ids in submission order. When full,
// pushing evicts the oldest id. It does not own the tasks and is not safe for
// concurrent use on its own; Store guards it with its mutex.
type History struct {
	ids  []string
	head int
	size int
}

// NewHistory returns an empty History holding at most capacity ids.
// Non-positive capacities fall back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{ids: make([]string, capacity)}
}

// Push appends id, evicting the oldest entry when at capacity.
func (h *History) Push(id string) {
	if h.size < len(h.ids) {
		h.ids[(h.head+h.size)%len(h.ids)] = id
		h.size++
		return
	}
	h.ids[h.head] = id
	h.head = (h.head + 1) % len(h.ids)
}

// IDs returns the retained ids oldest first.
func (h *History) IDs() []string {
	out := make([]string, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.ids[(h.head+i)%len(h.ids)]
	}
	return out
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.ids) }
