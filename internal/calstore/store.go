// Package calstore defines the calendar store collaborator consumed by the
// calendar controller, plus an in-memory implementation.
package calstore

import (
	"context"
	"errors"
	"time"

	"calplan/internal/model"
)

var (
	ErrNotFound     = errors.New("calstore: event not found")
	ErrReadOnly     = errors.New("calstore: store is read-only")
	ErrAccessDenied = errors.New("calstore: access denied")
)

// Store is a single default calendar.
type Store interface {
	// RequestAccess reports whether the calendar may be read and written.
	RequestAccess(ctx context.Context) (bool, error)
	// FetchEvents returns events overlapping [start, end).
	FetchEvents(ctx context.Context, start, end time.Time) ([]model.EventRecord, error)
	// AddEvent stores rec, assigning an id when rec.ID is empty.
	AddEvent(ctx context.Context, rec model.EventRecord) (model.EventRecord, error)
	ModifyEvent(ctx context.Context, rec model.EventRecord) error
	DeleteEvent(ctx context.Context, id string) error
}

// Notifier is implemented by stores that signal external mutation.
// Signals are coalesced: one pending value means "something changed".
type Notifier interface {
	Changes() <-chan struct{}
}

// Overlaps reports whether ev intersects [start, end). Zero-length events on
// start are included.
func Overlaps(ev model.EventRecord, start, end time.Time) bool {
	return ev.Start.Before(end) && !ev.End.Before(start)
}

// Signal is an embeddable coalescing change notifier.
type Signal struct {
	ch chan struct{}
}

func NewSignal() Signal { return Signal{ch: make(chan struct{}, 1)} }

func (s Signal) Changes() <-chan struct{} { return s.ch }

// Notify records a change without blocking.
func (s Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}
