package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WeekStart != "sunday" || cfg.Store.Key != DefaultTaskKey {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
week_start: Monday
trailing_padding: bogus
store:
  backend: redis
assistant:
  url: http://assistant.local/chat
  timeout: 5s
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WeekStart != "monday" {
		t.Errorf("week_start = %q", cfg.WeekStart)
	}
	if cfg.TrailingPadding != "none" {
		t.Errorf("trailing_padding = %q", cfg.TrailingPadding)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Key != DefaultTaskKey {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Assistant.Timeout != 5*time.Second {
		t.Errorf("assistant timeout = %v", cfg.Assistant.Timeout)
	}
	if cfg.Assistant.UserAgent != DefaultUserAgent {
		t.Errorf("user agent = %q", cfg.Assistant.UserAgent)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("listen = %q", cfg.Listen)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	cfg.Calendar.Source = "feed"
	cfg.Calendar.Feed = FeedConfig{URL: "https://example.com/cal.ics", ID: "work", Name: "Work"}
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Timezone != "Asia/Seoul" || got.Calendar.Feed.ID != "work" || got.Calendar.Source != "feed" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.BasicAuth == nil || got.BasicAuth.Password != "p" {
		t.Fatalf("basic auth lost: %+v", got.BasicAuth)
	}
	if got.Assistant.Timeout != DefaultAssistantTimeout {
		t.Fatalf("timeout lost: %v", got.Assistant.Timeout)
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("Local: %v %v", loc, err)
	}

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("UTC: %v %v", loc, err)
	}

	cfg.Timezone = "Nowhere/Invalid"
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for invalid zone")
	}
}
