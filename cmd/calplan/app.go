package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calplan/internal/assistant"
	"calplan/internal/calendar"
	"calplan/internal/calstore"
	"calplan/internal/config"
	"calplan/internal/dategrid"
	"calplan/internal/ics"
	"calplan/internal/kv"
	appLog "calplan/internal/log"
	"calplan/internal/tasks"
)

// App builds the services a command needs from the config file. Each
// accessor opens its service once.
type App struct {
	ConfigPath string
	LogLevel   string

	cfg       *config.Config
	loc       *time.Location
	weekStart time.Weekday
	trailing  dategrid.TrailingPolicy

	calStore calstore.Store
	kvStore  kv.Store
	tasks    *tasks.Store
}

func (a *App) Config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", a.ConfigPath, err)
	}
	level := cfg.Log.Level
	if a.LogLevel != "" {
		level = a.LogLevel
	}
	if err := appLog.Init(appLog.Config{Level: appLog.Level(level), Dir: cfg.Log.Dir}); err != nil {
		return nil, fmt.Errorf("init log: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := dategrid.ParseWeekStart(cfg.WeekStart)
	if err != nil {
		return nil, err
	}
	trailing, err := dategrid.ParseTrailingPolicy(cfg.TrailingPadding)
	if err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"config_path", a.ConfigPath,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"week_start", weekStart,
		"calendar", cfg.Calendar.Source,
		"store", cfg.Store.Backend,
		"assistant", appLog.RedactURL(cfg.Assistant.URL),
		"refresh", cfg.RefreshCron,
	)

	a.cfg, a.loc, a.weekStart, a.trailing = cfg, loc, weekStart, trailing
	return cfg, nil
}

// CalendarStore opens the configured calendar source.
func (a *App) CalendarStore() (calstore.Store, error) {
	if a.calStore != nil {
		return a.calStore, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	switch cfg.Calendar.Source {
	case "file", "":
		a.calStore = ics.NewFileStore(cfg.Calendar.ICSPath, a.loc)
	case "feed":
		src := ics.Source{ID: cfg.Calendar.Feed.ID, URL: cfg.Calendar.Feed.URL}
		if src.ID == "" {
			src.ID = "feed"
		}
		a.calStore = ics.NewFeedStore(ics.NewFetcher(cfg.Calendar.CacheDir, nil), src, a.loc)
	case "memory":
		a.calStore = calstore.NewMemory()
	default:
		return nil, fmt.Errorf("unknown calendar source %q", cfg.Calendar.Source)
	}
	return a.calStore, nil
}

// Controller returns a calendar controller over the configured source. It is
// not started.
func (a *App) Controller() (*calendar.Controller, error) {
	store, err := a.CalendarStore()
	if err != nil {
		return nil, err
	}
	return calendar.New(store, calendar.Options{
		Location:  a.loc,
		WeekStart: a.weekStart,
		Trailing:  a.trailing,
	}), nil
}

// Tasks opens the key-value backend and loads the planned task list.
func (a *App) Tasks(ctx context.Context) (*tasks.Store, error) {
	if a.tasks != nil {
		return a.tasks, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.kvStore = store

	ts := tasks.New(store, tasks.Options{Key: cfg.Store.Key})
	if err := ts.Load(ctx); err != nil {
		return nil, err
	}
	a.tasks = ts
	return ts, nil
}

// Assistant returns nil when no assistant URL is configured.
func (a *App) Assistant(ctx context.Context) (*assistant.Bridge, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	if cfg.Assistant.URL == "" {
		return nil, nil
	}
	ts, err := a.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return assistant.New(assistant.Config{
		URL:       cfg.Assistant.URL,
		Timeout:   cfg.Assistant.Timeout,
		UserAgent: cfg.Assistant.UserAgent,
		Location:  a.loc,
	}, ts), nil
}

func (a *App) Location() *time.Location {
	if a.loc == nil {
		return time.Local
	}
	return a.loc
}

// Close releases the key-value backend and the log file.
func (a *App) Close() error {
	var errs []error
	if a.kvStore != nil {
		errs = append(errs, a.kvStore.Close())
	}
	errs = append(errs, appLog.Close())
	return errors.Join(errs...)
}
