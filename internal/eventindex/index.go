// Package eventindex buckets a snapshot of events by the calendar day of
// their start instant.
package eventindex

import (
	"sort"
	"time"

	"calplan/internal/model"
)

// Index maps day-of-month to the events starting on that day. Only the start
// day is indexed; multi-day events are not spread across later days.
type Index struct {
	loc  *time.Location
	days map[int][]model.EventRecord
}

// SameDay reports calendar-day identity of a and b in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Build indexes events whose start day falls in [monthStart, monthEnd).
// Calendar days are evaluated in monthStart's location.
func Build(events []model.EventRecord, monthStart, monthEnd time.Time) Index {
	loc := monthStart.Location()
	idx := Index{loc: loc, days: make(map[int][]model.EventRecord)}

	// Keys are day-of-month, so only monthStart's month is indexed.
	y, m, _ := monthStart.Date()
	lo := truncateDay(monthStart)
	for _, ev := range events {
		start := ev.Start.In(loc)
		day := truncateDay(start)
		if day.Before(lo) || !day.Before(monthEnd) || day.Year() != y || day.Month() != m {
			continue
		}
		idx.days[start.Day()] = append(idx.days[start.Day()], ev.Clone())
	}
	for d := range idx.days {
		sortEvents(idx.days[d])
	}
	return idx
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sortEvents(evs []model.EventRecord) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

func (x Index) HasEvent(day int) bool {
	return len(x.days[day]) > 0
}

// EventsOn returns a copy of the events starting on day.
func (x Index) EventsOn(day int) []model.EventRecord {
	evs := x.days[day]
	if len(evs) == 0 {
		return nil
	}
	out := make([]model.EventRecord, len(evs))
	for i, ev := range evs {
		out[i] = ev.Clone()
	}
	return out
}

// Days returns the indexed days in ascending order.
func (x Index) Days() []int {
	out := make([]int, 0, len(x.days))
	for d := range x.days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Len is the number of indexed events.
func (x Index) Len() int {
	n := 0
	for _, evs := range x.days {
		n += len(evs)
	}
	return n
}

func (x Index) Location() *time.Location { return x.loc }

// Equal compares two indexes bucket by bucket on id, title and instants.
func (x Index) Equal(o Index) bool {
	if len(x.days) != len(o.days) {
		return false
	}
	for d, evs := range x.days {
		other, ok := o.days[d]
		if !ok || len(other) != len(evs) {
			return false
		}
		for i := range evs {
			a, b := evs[i], other[i]
			if a.ID != b.ID || a.Title != b.Title || !a.Start.Equal(b.Start) || !a.End.Equal(b.End) {
				return false
			}
		}
	}
	return true
}
