package tasks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	// ErrTaskNotFound is returned for ids the store has never issued.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when an update would break the
	// pending -> running -> completed|failed lifecycle.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// StoreConfig configures a Store. Zero values select defaults.
type StoreConfig struct {
	HistorySize int
	Logger      *zerolog.Logger
	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

// Store maps task ids to task records. Every operation takes the same mutex
// for a constant amount of work, so callers may poll it freely.
type Store struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	history *History
	now     func() time.Time
	newID   func() string
	log     zerolog.Logger
}

// NewStore returns an empty Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		tasks:   make(map[string]*Task),
		history: NewHistory(cfg.HistorySize),
		now:     cfg.Clock,
		newID:   cfg.NewID,
		log:     zerolog.Nop(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	}
	return s
}

// Create registers a new pending task and records it in the history.
func (s *Store) Create() Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for s.tasks[id] != nil {
		id = s.newID()
	}
	now := s.now()
	t := &Task{ID: id, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	s.tasks[id] = t
	s.history.Push(id)
	return *t
}

// Update applies the non-nil fields of u to task id and returns the result.
// Unknown ids and illegal transitions leave the store untouched.
func (s *Store) Update(id string, u Update) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.tasks[id]
	if cur == nil {
		s.log.Warn().Str("task_id", id).Msg("update for unknown task ignored")
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	next, err := apply(*cur, u)
	if err != nil {
		s.log.Warn().Str("task_id", id).Str("status", string(cur.Status)).Err(err).Msg("task update rejected")
		return *cur, err
	}
	next.UpdatedAt = s.now()
	*cur = next
	return next, nil
}

// Get returns a copy of task id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil {
		return Task{}, false
	}
	return *t, true
}

// Len is the number of tasks tracked since start.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// History returns the recent task ids oldest first.
func (s *Store) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.IDs()
}

// ActiveIDs returns the ids of pending and running tasks ordered by creation.
func (s *Store) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// Report is a consistent view of the store used by admin status.
type Report struct {
	Active          []string
	RecentCompleted []string
	RecentFailed    []string
	Total           int
}

// Report partitions the store under a single lock: active ids come from the
// whole store, completed and failed ids from the recency history.
func (s *Store) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := s.history.IDs()
	byStatus := func(st Status) []string {
		return lo.Filter(recent, func(id string, _ int) bool {
			t := s.tasks[id]
			return t != nil && t.Status == st
		})
	}
	return Report{
		Active:          s.activeLocked(),
		RecentCompleted: byStatus(StatusCompleted),
		RecentFailed:    byStatus(StatusFailed),
		Total:           len(s.tasks),
	}
}

func (s *Store) activeLocked() []string {
	active := lo.Filter(lo.Values(s.tasks), func(t *Task, _ int) bool { return t.Active() })
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return lo.Map(active, func(t *Task, _ int) string { return t.ID })
}

// apply returns cur with u applied, or ErrInvalidTransition.
func apply(cur Task, u Update) (Task, error) {
	if cur.Status.Terminal() {
		return cur, fmt.Errorf("%w: task already %s", ErrInvalidTransition, cur.Status)
	}
	next := cur
	if u.Status != nil {
		to := *u.Status
		if !to.Valid() {
			return cur, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
		}
		if !allowed(cur.Status, to) {
			return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
		}
		next.Status = to
	}
	if u.Progress != nil {
		p := clamp01(*u.Progress)
		if p > next.Progress {
			next.Progress = p
		}
	}
	if u.ResultURL != nil {
		next.ResultURL = *u.ResultURL
	}
	if u.Error != nil {
		next.Error = *u.Error
	}
	if (next.Status == StatusCompleted) != (next.ResultURL != "") {
		return cur, fmt.Errorf("%w: result is set only on completed tasks", ErrInvalidTransition)
	}
	if (next.Status == StatusFailed) != (next.Error != "") {
		return cur, fmt.Errorf("%w: error is set only on failed tasks", ErrInvalidTransition)
	}
	return next, nil
}

func allowed(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPending || to == StatusRunning
	case StatusRunning:
		return to != StatusPending
	}
	return false
}

func clamp01(p float64) float64 {
	switch {
	case p != p, p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
