package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"calplan/internal/fsutil"
)

// FeedConfig describes a read-only ICS subscription used as the calendar source.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for cache keys and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// CalendarConfig selects the calendar store collaborator.
type CalendarConfig struct {
	// Source is one of "file", "feed" or "memory".
	Source   string     `yaml:"source" json:"source"`
	ICSPath  string     `yaml:"ics_path" json:"ics_path"`
	Feed     FeedConfig `yaml:"feed" json:"feed"`
	CacheDir string     `yaml:"cache_dir" json:"cache_dir"`
}

// AzTablesConfig addresses a single Azure Storage table.
type AzTablesConfig struct {
	ConnectionString string `yaml:"connection_string" json:"-"`
	Table            string `yaml:"table" json:"table"`
}

// StoreConfig selects the durable key-value backend for planned tasks.
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "redis", "postgres", "aztables" or "memory".
	Backend     string         `yaml:"backend" json:"backend"`
	Key         string         `yaml:"key" json:"key"`
	Path        string         `yaml:"path" json:"path"`
	RedisURL    string         `yaml:"redis_url" json:"redis_url"`
	PostgresDSN string         `yaml:"postgres_dsn" json:"-"`
	AzTables    AzTablesConfig `yaml:"aztables" json:"aztables"`
}

// AssistantConfig configures the remote assistant endpoint. An empty URL
// disables the bridge.
type AssistantConfig struct {
	URL       string        `yaml:"url" json:"url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// LogConfig mirrors log.Config in YAML form.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for calendar-day identity ("Local" uses the host zone).
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// TrailingPadding is "none" (default), "complete_week" or "six_weeks".
	TrailingPadding string `yaml:"trailing_padding" json:"trailing_padding"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// periodic calendar refresh. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Calendar  CalendarConfig  `yaml:"calendar" json:"calendar"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Assistant AssistantConfig `yaml:"assistant" json:"assistant"`
	Log       LogConfig       `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	DefaultListen           = "127.0.0.1:8080"
	DefaultTaskKey          = "planned_tasks"
	DefaultAssistantTimeout = 45 * time.Second
	DefaultUserAgent        = "Kairos-calplan/0.1"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		Timezone:        "Local",
		WeekStart:       "sunday",
		TrailingPadding: "none",
		RefreshCron:     "*/15 * * * *",
		Calendar: CalendarConfig{
			Source:   "file",
			ICSPath:  "./var/calendar.ics",
			CacheDir: "./var/ics-cache",
		},
		Store: StoreConfig{
			Backend:  "file",
			Key:      DefaultTaskKey,
			Path:     "./var/tasks",
			RedisURL: "redis://127.0.0.1:6379/0",
			AzTables: AzTablesConfig{Table: "calplan"},
		},
		Assistant: AssistantConfig{
			Timeout:   DefaultAssistantTimeout,
			UserAgent: DefaultUserAgent,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}

	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to sunday to avoid surprising layouts.
		c.WeekStart = def.WeekStart
	}

	c.TrailingPadding = strings.ToLower(strings.TrimSpace(c.TrailingPadding))
	switch c.TrailingPadding {
	case "none", "complete_week", "six_weeks":
	default:
		c.TrailingPadding = def.TrailingPadding
	}

	switch c.Calendar.Source {
	case "file", "feed", "memory":
	default:
		c.Calendar.Source = def.Calendar.Source
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = def.Calendar.ICSPath
	}
	if c.Calendar.CacheDir == "" {
		c.Calendar.CacheDir = def.Calendar.CacheDir
	}
	if c.Calendar.Feed.ID == "" {
		c.Calendar.Feed.ID = "feed"
	}

	switch c.Store.Backend {
	case "file", "sqlite", "redis", "postgres", "aztables", "memory":
	default:
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.Key == "" {
		c.Store.Key = def.Store.Key
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.AzTables.Table == "" {
		c.Store.AzTables.Table = def.Store.AzTables.Table
	}

	if c.Assistant.Timeout <= 0 {
		c.Assistant.Timeout = def.Assistant.Timeout
	}
	if c.Assistant.UserAgent == "" {
		c.Assistant.UserAgent = def.Assistant.UserAgent
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Location resolves Timezone. "Local" maps to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directories included) and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save normalizes cfg and writes it atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
