package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calplan/internal/calstore"
	"calplan/internal/dategrid"
	appLog "calplan/internal/log"
	"calplan/internal/model"
	"calplan/internal/render"
	"calplan/internal/scheduler"
	"calplan/internal/tasks"
	"calplan/internal/web"
)

// Layouts accepted for --start/--end besides RFC 3339. Zoneless values are
// read in the configured timezone.
var whenLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 or YYYY-MM-DD[ HH:MM]", s)
}

// timeRange resolves --start/--end. A missing start is now, a missing end
// is one hour after start.
func timeRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	s := time.Now().In(loc)
	if start != "" {
		var err error
		if s, err = parseWhen(start, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	e := s.Add(time.Hour)
	if end != "" {
		var err error
		if e, err = parseWhen(end, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return s, e, nil
}

type ServeCmd struct {
	Listen string `help:"HTTP listen address (overrides config)." placeholder:"ADDR"`
}

func (c *ServeCmd) Run(app *App, ctx context.Context) error {
	cfg, err := app.Config()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	cal, err := app.Controller()
	if err != nil {
		return err
	}
	ts, err := app.Tasks(ctx)
	if err != nil {
		return err
	}
	bridge, err := app.Assistant(ctx)
	if err != nil {
		return err
	}

	if err := cal.Start(ctx); err != nil {
		// Keep serving so the error state is visible through the API.
		appLog.Warn("calendar not available", "error", err)
	}
	store, _ := app.CalendarStore()
	if n, ok := store.(calstore.Notifier); ok {
		go func() {
			if err := cal.Watch(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("calendar watch stopped", err)
			}
		}()
	}

	sched, err := scheduler.New(cfg.RefreshCron, app.Location(), cal.Refresh)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			appLog.Warn("scheduler stop timed out", "error", err)
		}
		cal.Wait()
	}()

	srv := web.NewServer(cfg, web.Deps{
		Calendar:  cal,
		Tasks:     ts,
		Assistant: bridge,
		Location:  app.Location(),
	})
	err = srv.Run(ctx)
	appLog.Info("calplan exiting")
	return err
}

type MonthCmd struct {
	Month  string `help:"Month to show as YYYY-MM (default: current)." placeholder:"YYYY-MM"`
	Select int    `help:"Select a day and list its events." placeholder:"DAY"`
}

func (c *MonthCmd) Run(app *App, ctx context.Context) error {
	cal, err := app.Controller()
	if err != nil {
		return err
	}
	if err := cal.Start(ctx); err != nil {
		return err
	}
	if c.Month != "" {
		ym, err := dategrid.ParseYearMonth(c.Month)
		if err != nil {
			return err
		}
		if err := cal.ShowMonth(ctx, ym); err != nil {
			return err
		}
	}
	snap, err := cal.Settle(ctx)
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}
	if c.Select != 0 {
		if err := cal.SelectDate(c.Select); err != nil {
			return err
		}
		snap = cal.Snapshot()
	}
	fmt.Println(render.Month(snap, app.weekStart))

	if c.Select != 0 {
		events, err := cal.LoadDayEvents(ctx, c.Select)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(render.Events(events, app.Location()))
	}
	return nil
}

type TaskAddCmd struct {
	Title    string `arg:"" help:"Task title."`
	Start    string `help:"Start time (default: now)." placeholder:"TIME"`
	End      string `help:"End time (default: start + 1h)." placeholder:"TIME"`
	Location string `help:"Where the task happens."`
	Notes    string `help:"Free-form notes."`
}

func (c *TaskAddCmd) Run(app *App, ctx context.Context) error {
	ts, err := app.Tasks(ctx)
	if err != nil {
		return err
	}
	start, end, err := timeRange(c.Start, c.End, app.Location())
	if err != nil {
		return err
	}
	t, err := ts.Insert(ctx, model.Task{
		Title:   c.Title,
		Start:   start,
		End:     end,
		Details: model.TaskDetails{Location: c.Location, Notes: c.Notes},
	})
	if err != nil {
		return err
	}
	fmt.Println(render.Tasks([]model.Task{t}, app.Location()))
	return nil
}

type TaskListCmd struct{}

func (c *TaskListCmd) Run(app *App, ctx context.Context) error {
	ts, err := app.Tasks(ctx)
	if err != nil {
		return err
	}
	fmt.Println(render.Tasks(ts.All(), app.Location()))
	return nil
}

type TaskEditCmd struct {
	ID       string  `arg:"" help:"Task id."`
	Title    *string `help:"New title."`
	Start    string  `help:"New start time." placeholder:"TIME"`
	End      string  `help:"New end time." placeholder:"TIME"`
	Location *string `help:"New location."`
	Notes    *string `help:"New notes."`
}

func (c *TaskEditCmd) Run(app *App, ctx context.Context) error {
	ts, err := app.Tasks(ctx)
	if err != nil {
		return err
	}
	cur, ok := ts.Get(c.ID)
	if !ok {
		return fmt.Errorf("task %s not found", c.ID)
	}

	f := tasks.Fields{Title: c.Title}
	loc := app.Location()
	if c.Start != "" {
		t, err := parseWhen(c.Start, loc)
		if err != nil {
			return err
		}
		f.Start = &t
	}
	if c.End != "" {
		t, err := parseWhen(c.End, loc)
		if err != nil {
			return err
		}
		f.End = &t
	}
	if c.Location != nil || c.Notes != nil {
		d := cur.Details
		if c.Location != nil {
			d.Location = *c.Location
		}
		if c.Notes != nil {
			d.Notes = *c.Notes
		}
		f.Details = &d
	}

	if _, err := ts.Update(ctx, c.ID, f); err != nil {
		return err
	}
	t, _ := ts.Get(c.ID)
	fmt.Println(render.Tasks([]model.Task{t}, loc))
	return nil
}

type TaskRmCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TaskRmCmd) Run(app *App, ctx context.Context) error {
	ts, err := app.Tasks(ctx)
	if err != nil {
		return err
	}
	found, err := ts.Remove(ctx, c.ID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("task %s not found", c.ID)
	}
	return nil
}

type AskCmd struct {
	Title string `arg:"" help:"What to ask the assistant to plan."`
	Start string `help:"Start of the requested range (default: now)." placeholder:"TIME"`
	End   string `help:"End of the requested range (default: start + 1h)." placeholder:"TIME"`
}

func (c *AskCmd) Run(app *App, ctx context.Context) error {
	bridge, err := app.Assistant(ctx)
	if err != nil {
		return err
	}
	if bridge == nil {
		return errors.New("assistant.url is not configured")
	}
	start, end, err := timeRange(c.Start, c.End, app.Location())
	if err != nil {
		return err
	}

	res := <-bridge.Send(ctx, c.Title, start, end)
	if !res.Accepted {
		return res.Err
	}
	switch {
	case res.Sentinel:
		fmt.Printf("assistant reply was not usable; stored %s\n", res.Outcome.TaskID)
	case !res.Outcome.Applied:
		fmt.Printf("assistant asked to %s %s; no such task\n", res.Outcome.Action, res.Outcome.TaskID)
	default:
		fmt.Printf("assistant %s: %s\n", res.Outcome.Action, res.Outcome.TaskID)
	}
	if res.Err != nil {
		appLog.Warn("assistant reply stored with errors", "error", res.Err)
	}
	return nil
}

type EventAddCmd struct {
	Title    string   `arg:"" help:"Event title."`
	Start    string   `help:"Start time (default: now)." placeholder:"TIME"`
	End      string   `help:"End time (default: start + 1h)." placeholder:"TIME"`
	AllDay   bool     `help:"Mark the event as all-day."`
	Location string   `help:"Event location."`
	Notes    string   `help:"Event notes."`
	Category string   `help:"Event category."`
	People   []string `help:"People attending." sep:","`
	Priority int      `help:"Priority 1 (highest) to 5." default:"3"`
	Free     bool     `help:"Show as free instead of busy."`
}

func (c *EventAddCmd) Run(app *App, ctx context.Context) error {
	store, err := app.CalendarStore()
	if err != nil {
		return err
	}
	loc := app.Location()
	start, end, err := timeRange(c.Start, c.End, loc)
	if err != nil {
		return err
	}
	if c.AllDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if c.End == "" || !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}
	rec := model.EventRecord{
		Title:    c.Title,
		Start:    start,
		End:      end,
		AllDay:   c.AllDay,
		Category: c.Category,
		People:   c.People,
		Location: c.Location,
		Notes:    c.Notes,
		Priority: c.Priority,
	}
	if c.Free {
		rec.Availability = model.AvailabilityFree
	}
	if _, err := store.RequestAccess(ctx); err != nil {
		return err
	}
	added, err := store.AddEvent(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Println(render.Events([]model.EventRecord{added}, loc))
	return nil
}

type EventRmCmd struct {
	ID string `arg:"" help:"Event id."`
}

func (c *EventRmCmd) Run(app *App, ctx context.Context) error {
	store, err := app.CalendarStore()
	if err != nil {
		return err
	}
	if _, err := store.RequestAccess(ctx); err != nil {
		return err
	}
	return store.DeleteEvent(ctx, c.ID)
}
