package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Availability values carried by EventRecord.Availability.
const (
	AvailabilityBusy = "busy"
	AvailabilityFree = "free"
)

const DefaultPriority = 3

// EventRecord is a read-only projection of one calendar-store event.
type EventRecord struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay"`

	Category     string   `json:"category,omitempty"`
	People       []string `json:"people,omitempty"`
	Location     string   `json:"location,omitempty"`
	Alert        string   `json:"alert,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Availability string   `json:"availability,omitempty"`
	Priority     int      `json:"priority"`
}

var ErrInvalidEvent = errors.New("invalid event")

// Normalize dedupes and sorts People and fills the default priority and
// availability.
func (e *EventRecord) Normalize() {
	if e.Priority == 0 {
		e.Priority = DefaultPriority
	}
	if e.Availability == "" {
		e.Availability = AvailabilityBusy
	}
	if len(e.People) == 0 {
		e.People = nil
		return
	}
	seen := make(map[string]struct{}, len(e.People))
	out := e.People[:0]
	for _, p := range e.People {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	if len(out) == 0 {
		out = nil
	}
	e.People = out
}

// Validate reports whether the record can be written to a calendar store.
func (e EventRecord) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidEvent)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidEvent, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	if e.Priority < 1 || e.Priority > 5 {
		return fmt.Errorf("%w: priority %d outside 1..5", ErrInvalidEvent, e.Priority)
	}
	switch e.Availability {
	case "", AvailabilityBusy, AvailabilityFree:
	default:
		return fmt.Errorf("%w: availability %q", ErrInvalidEvent, e.Availability)
	}
	return nil
}

// Clone returns a copy that shares no slices with e.
func (e EventRecord) Clone() EventRecord {
	if e.People != nil {
		e.People = append([]string(nil), e.People...)
	}
	return e
}
