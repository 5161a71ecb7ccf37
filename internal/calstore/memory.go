package calstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"calplan/internal/model"
)

// Memory is a thread-safe in-process calendar. It also carries fault hooks
// used by controller tests.
type Memory struct {
	Signal

	mu     sync.Mutex
	events map[string]model.EventRecord
	denied bool

	failNext error
	delay    func(start time.Time) time.Duration
}

func NewMemory(events ...model.EventRecord) *Memory {
	m := &Memory{Signal: NewSignal(), events: make(map[string]model.EventRecord)}
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		ev.Normalize()
		m.events[ev.ID] = ev.Clone()
	}
	return m
}

// Deny makes RequestAccess report false.
func (m *Memory) Deny() {
	m.mu.Lock()
	m.denied = true
	m.mu.Unlock()
}

// FailNext makes the next FetchEvents call return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

// SetDelay makes FetchEvents sleep for fn(start) before answering, honoring ctx.
func (m *Memory) SetDelay(fn func(start time.Time) time.Duration) {
	m.mu.Lock()
	m.delay = fn
	m.mu.Unlock()
}

func (m *Memory) RequestAccess(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.denied, nil
}

func (m *Memory) FetchEvents(ctx context.Context, start, end time.Time) ([]model.EventRecord, error) {
	m.mu.Lock()
	delay := m.delay
	failNext := m.failNext
	m.failNext = nil
	m.mu.Unlock()

	if delay != nil {
		if d := delay(start); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if failNext != nil {
		return nil, failNext
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, ErrAccessDenied
	}
	out := make([]model.EventRecord, 0)
	for _, ev := range m.events {
		if Overlaps(ev, start, end) {
			out = append(out, ev.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) AddEvent(ctx context.Context, rec model.EventRecord) (model.EventRecord, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return model.EventRecord{}, err
	}
	m.mu.Lock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := m.events[rec.ID]; exists {
		m.mu.Unlock()
		return model.EventRecord{}, fmt.Errorf("calstore: event %s already exists", rec.ID)
	}
	m.events[rec.ID] = rec.Clone()
	m.mu.Unlock()

	m.Notify()
	return rec, nil
}

func (m *Memory) ModifyEvent(ctx context.Context, rec model.EventRecord) error {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.events[rec.ID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	m.events[rec.ID] = rec.Clone()
	m.mu.Unlock()

	m.Notify()
	return nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.events[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.events, id)
	m.mu.Unlock()

	m.Notify()
	return nil
}
