package calendar

import (
	"errors"
	"fmt"

	"calplan/internal/dategrid"
	"calplan/internal/model"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets snapshots encode the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrFetch matches every *FetchError.
	ErrFetch      = errors.New("calendar fetch failed")
	ErrInvalidDay = errors.New("day is not in the displayed month")
)

// FetchError reports a failed load of Month. The previously published cells
// remain available.
type FetchError struct {
	Month dategrid.YearMonth
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("calendar: fetch %s: %v", e.Month, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Snapshot is a consistent view of the controller. Cells always belong to
// Month and their HasEvent flags come from the same fetch.
type Snapshot struct {
	Month  dategrid.YearMonth `json:"month"`
	Target dategrid.YearMonth `json:"target"`
	Cells  []model.DayCell    `json:"cells"`
	State  State              `json:"state"`
	Err    error              `json:"-"`
	// Stale is set while the cells do not reflect a successful fetch of
	// Target.
	Stale    bool `json:"stale"`
	Selected int  `json:"selected,omitempty"`
}
