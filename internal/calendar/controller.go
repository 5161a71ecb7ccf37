// Package calendar drives the displayed month: it owns the day grid, the
// event index for that month and the selection, and loads events from a
// calstore.Store in the background.
package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"calplan/internal/calstore"
	"calplan/internal/dategrid"
	"calplan/internal/eventindex"
	appLog "calplan/internal/log"
	"calplan/internal/model"
)

const (
	defaultFetchTimeout = 30 * time.Second
	tracerName          = "calplan/internal/calendar"
)

type Options struct {
	Location  *time.Location
	WeekStart time.Weekday
	Trailing  dategrid.TrailingPolicy
	// Now defaults to time.Now.
	Now func() time.Time
	// FetchTimeout bounds each background fetch. Defaults to 30s.
	FetchTimeout time.Duration
}

// Controller is safe for concurrent use. Loads run in the background; a load
// whose generation has been superseded by a later ChangeMonth or Refresh is
// discarded when it completes.
type Controller struct {
	store calstore.Store
	loc   *time.Location
	opts  Options

	wg sync.WaitGroup

	mu       sync.Mutex
	target   dategrid.YearMonth
	gen      uint64
	state    State
	err      error
	month    dategrid.YearMonth // month of cells
	cells    []model.DayCell
	index    eventindex.Index
	loaded   bool // cells reflect a successful fetch
	selected int
	subs     map[chan Snapshot]struct{}
}

func New(store calstore.Store, opts Options) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	c := &Controller{
		store: store,
		loc:   opts.Location,
		opts:  opts,
		subs:  make(map[chan Snapshot]struct{}),
	}
	c.target = c.thisMonth()
	return c
}

func (c *Controller) thisMonth() dategrid.YearMonth {
	return dategrid.YearMonthOf(c.opts.Now().In(c.loc))
}

func (c *Controller) grid() dategrid.Grid {
	return dategrid.Grid{WeekStart: c.opts.WeekStart, Trailing: c.opts.Trailing, Today: c.opts.Now().In(c.loc)}
}

// Start asks the store for access and begins loading the current month. A
// denied request leaves the controller in Error with an empty grid.
func (c *Controller) Start(ctx context.Context) error {
	granted, err := c.store.RequestAccess(ctx)
	if err == nil && !granted {
		err = calstore.ErrAccessDenied
	}
	if err != nil {
		c.mu.Lock()
		fe := &FetchError{Month: c.target, Err: err}
		c.failLocked(fe)
		c.mu.Unlock()
		appLog.Error("calendar access not granted", err)
		return fe
	}

	c.mu.Lock()
	c.loadLocked(ctx)
	c.mu.Unlock()
	return nil
}

// ChangeMonth moves the target month by n and starts loading it. n == 0
// reloads the current target. A result outside the representable range
// returns a *dategrid.DateRangeError and leaves the controller unchanged.
func (c *Controller) ChangeMonth(ctx context.Context, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.target.AddMonths(n)
	if err != nil {
		return err
	}
	c.moveLocked(ctx, next)
	return nil
}

// GoToToday targets the month containing now and always drops the
// selection, even when that month is already shown.
func (c *Controller) GoToToday(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != 0 {
		c.selected = 0
		c.cells = withSelection(c.cells, 0)
	}
	c.moveLocked(ctx, c.thisMonth())
	return nil
}

// ShowMonth targets ym directly.
func (c *Controller) ShowMonth(ctx context.Context, ym dategrid.YearMonth) error {
	if err := ym.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveLocked(ctx, ym)
	return nil
}

// Refresh reloads the target month, keeping the selection.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.ChangeMonth(ctx, 0)
}

func (c *Controller) moveLocked(ctx context.Context, next dategrid.YearMonth) {
	if next != c.target && c.selected != 0 {
		c.selected = 0
		c.cells = withSelection(c.cells, 0)
	}
	c.target = next
	c.loadLocked(ctx)
}

// loadLocked starts a background fetch of c.target tagged with a new
// generation.
func (c *Controller) loadLocked(ctx context.Context) {
	c.gen++
	gen, ym := c.gen, c.target
	c.state = Loading
	c.publishLocked()

	fetchCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(fetchCtx, gen, ym)
	}()
}

func (c *Controller) fetch(ctx context.Context, gen uint64, ym dategrid.YearMonth) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "calendar.fetch",
		trace.WithAttributes(
			attribute.String("calplan.calendar.month", ym.String()),
			attribute.Int64("calplan.calendar.generation", int64(gen)),
		),
	)
	defer span.End()

	start, end := ym.Range(c.loc)
	appLog.Debug("calendar fetch start", "month", ym, "gen", gen)
	events, err := c.store.FetchEvents(ctx, start, end)
	span.SetAttributes(attribute.Int("calplan.calendar.events", len(events)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	var cells []model.DayCell
	var idx eventindex.Index
	if err == nil {
		idx = eventindex.Build(events, start, end)
		cells, err = c.grid().Generate(ym)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		span.SetAttributes(attribute.Bool("calplan.calendar.discarded", true))
		appLog.Debug("calendar fetch discarded", "month", ym, "gen", gen, "current", c.gen)
		return
	}
	if err != nil {
		appLog.Error("calendar fetch failed", err, "month", ym)
		c.failLocked(&FetchError{Month: ym, Err: err})
		return
	}

	if ym != c.month {
		c.selected = 0
	}
	c.month = ym
	c.index = idx
	c.cells = withSelection(withEvents(cells, idx), c.selected)
	c.loaded = true
	c.state = Ready
	c.err = nil
	appLog.Info("calendar month ready", "month", ym, "events", idx.Len())
	c.publishLocked()
}

// failLocked records err and keeps the published cells. With nothing
// published yet, the target grid is shown without event flags.
func (c *Controller) failLocked(err error) {
	c.state = Error
	c.err = err
	if c.cells == nil {
		if cells, gerr := c.grid().Generate(c.target); gerr == nil {
			start, end := c.target.Range(c.loc)
			c.month = c.target
			c.cells = cells
			c.index = eventindex.Build(nil, start, end)
		}
	}
	c.publishLocked()
}

func withEvents(cells []model.DayCell, idx eventindex.Index) []model.DayCell {
	for i := range cells {
		cells[i].HasEvent = !cells[i].IsPadding() && idx.HasEvent(cells[i].Day)
	}
	return cells
}

func withSelection(cells []model.DayCell, day int) []model.DayCell {
	for i := range cells {
		cells[i].IsSelected = day != 0 && cells[i].Day == day
	}
	return cells
}

// SelectDate marks day in the displayed month as selected and clears any
// other selection. It does not fetch.
func (c *Controller) SelectDate(day int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cells == nil || day < 1 || day > c.month.Days() {
		return ErrInvalidDay
	}
	c.selected = day
	c.cells = withSelection(c.cells, day)
	c.publishLocked()
	return nil
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == 0 {
		return
	}
	c.selected = 0
	c.cells = withSelection(c.cells, 0)
	c.publishLocked()
}

// CurrentDayCells returns a copy of the displayed cells.
func (c *Controller) CurrentDayCells() []model.DayCell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DayCell(nil), c.cells...)
}

// EventsFor returns the indexed events starting on day of the displayed
// month.
func (c *Controller) EventsFor(day int) []model.EventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.EventsOn(day)
}

// LoadDayEvents queries the store for everything overlapping day of the
// displayed month, including events that started on earlier days.
func (c *Controller) LoadDayEvents(ctx context.Context, day int) ([]model.EventRecord, error) {
	c.mu.Lock()
	ym := c.month
	ok := c.cells != nil && day >= 1 && day <= ym.Days()
	c.mu.Unlock()
	if !ok {
		return nil, ErrInvalidDay
	}

	start := time.Date(ym.Year, ym.Month, day, 0, 0, 0, 0, c.loc)
	events, err := c.store.FetchEvents(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, &FetchError{Month: ym, Err: err}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Title < events[j].Title
	})
	return events, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Month:    c.month,
		Target:   c.target,
		Cells:    append([]model.DayCell(nil), c.cells...),
		State:    c.state,
		Err:      c.err,
		Stale:    !c.loaded || c.month != c.target || c.state == Error,
		Selected: c.selected,
	}
}

// Subscribe returns a channel carrying the latest snapshot after every
// change. Slow readers only see the most recent one. The channel is closed
// when ctx is done.
func (c *Controller) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Settle waits until the controller is no longer Loading and returns that
// snapshot.
func (c *Controller) Settle(ctx context.Context) (Snapshot, error) {
	sub, cancel := context.WithCancel(ctx)
	defer cancel()
	for snap := range c.Subscribe(sub) {
		if snap.State != Loading {
			return snap, nil
		}
	}
	return c.Snapshot(), ctx.Err()
}

// Wait blocks until every fetch started so far has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// Watch refreshes whenever n reports a change, until ctx is done.
func (c *Controller) Watch(ctx context.Context, n calstore.Notifier) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.Changes():
			appLog.Debug("calendar store changed; refreshing")
			if err := c.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}

// AddEvent stores rec and reloads the displayed month.
func (c *Controller) AddEvent(ctx context.Context, rec model.EventRecord) (model.EventRecord, error) {
	added, err := c.store.AddEvent(ctx, rec)
	if err != nil {
		return model.EventRecord{}, err
	}
	return added, c.Refresh(ctx)
}

func (c *Controller) ModifyEvent(ctx context.Context, rec model.EventRecord) error {
	if err := c.store.ModifyEvent(ctx, rec); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

func (c *Controller) DeleteEvent(ctx context.Context, id string) error {
	if err := c.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
