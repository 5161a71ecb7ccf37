// Package tasks owns the ordered list of planned tasks and writes it back to a
// kv.Store after every mutation.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calplan/internal/kv"
	appLog "calplan/internal/log"
	"calplan/internal/model"
)

var (
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("task persistence failed")
	ErrInvalidTask = errors.New("invalid task")
)

// PersistenceError wraps a durable store failure. The in-memory list still
// holds the change that failed to persist.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("tasks: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Options configures a Store. Zero values select "planned_tasks" and random
// UUIDs.
type Options struct {
	Key   string
	NewID func() string
}

// Fields is a partial update; nil pointers leave the field untouched.
type Fields struct {
	Title   *string
	Start   *time.Time
	End     *time.Time
	Action  *model.ActionKind
	Details *model.TaskDetails
}

// Store is safe for concurrent use. Mutations are serialized and each one is
// persisted before the call returns.
type Store struct {
	kv    kv.Store
	key   string
	newID func() string

	mu    sync.Mutex
	tasks []model.Task
}

func New(store kv.Store, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = "planned_tasks"
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{kv: store, key: opts.Key, newID: opts.NewID}
}

// Load replaces the in-memory list with the persisted one. A missing key
// yields an empty list.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		s.mu.Lock()
		s.tasks = nil
		s.mu.Unlock()
		appLog.Debug("tasks load: no stored list", "key", s.key)
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "load", Key: s.key, Err: err}
	}

	loaded, err := decode(data)
	if err != nil {
		return &PersistenceError{Op: "decode", Key: s.key, Err: err}
	}

	s.mu.Lock()
	s.tasks = loaded
	s.mu.Unlock()
	appLog.Info("tasks loaded", "key", s.key, "count", len(loaded))
	return nil
}

// Persist writes the current list.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := encode(s.tasks)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: s.key, Err: err}
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		appLog.Error("tasks persist failed", err, "key", s.key, "count", len(s.tasks))
		return &PersistenceError{Op: "persist", Key: s.key, Err: err}
	}
	return nil
}

// Add appends a new task with a fresh id.
func (s *Store) Add(ctx context.Context, title string, start, end time.Time) (model.Task, error) {
	return s.Insert(ctx, model.Task{Title: title, Start: start, End: end, Action: model.ActionAdd})
}

// Insert appends t under a freshly generated id; t.ID is ignored.
func (s *Store) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if err := validate(t); err != nil {
		return model.Task{}, err
	}
	if t.Action == "" {
		t.Action = model.ActionAdd
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.uniqueIDLocked()
	s.tasks = append(s.tasks, t)
	appLog.Debug("task added", "id", t.ID, "title", t.Title)
	return t, s.persistLocked(ctx)
}

// Remove deletes the task with id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	appLog.Debug("task removed", "id", id)
	return true, s.persistLocked(ctx)
}

// Update applies f to the task with id and reports whether it exists.
func (s *Store) Update(ctx context.Context, id string, f Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	t := s.tasks[i]
	if f.Title != nil {
		t.Title = strings.TrimSpace(*f.Title)
	}
	if f.Start != nil {
		t.Start = *f.Start
	}
	if f.End != nil {
		t.End = *f.End
	}
	if f.Action != nil {
		t.Action = *f.Action
	}
	if f.Details != nil {
		t.Details = *f.Details
	}
	if err := validate(t); err != nil {
		return true, err
	}
	s.tasks[i] = t
	appLog.Debug("task updated", "id", id)
	return true, s.persistLocked(ctx)
}

func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// All returns the tasks in insertion order.
func (s *Store) All() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if id != "" && s.indexLocked(id) < 0 {
			return id
		}
	}
}

func validate(t model.Task) error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidTask)
	}
	if !t.Start.IsZero() && !t.End.IsZero() && t.End.Before(t.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidTask)
	}
	if t.Action != "" {
		if _, err := model.ParseActionKind(string(t.Action)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	}
	return nil
}
