package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"calplan/internal/config"
)

// exercise runs the shared contract against any backend.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "planned_tasks"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "planned_tasks", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "planned_tasks", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "planned_tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("got %q", got)
	}
	if err := s.Set(ctx, "odd/key #1?", []byte("x")); err != nil {
		t.Fatalf("set odd key: %v", err)
	}
	if got, err := s.Get(ctx, "odd/key #1?"); err != nil || string(got) != "x" {
		t.Fatalf("odd key = %q, %v", got, err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m)

	// Returned slices are copies.
	ctx := context.Background()
	got, _ := m.Get(ctx, "planned_tasks")
	got[0] = 'X'
	again, _ := m.Get(ctx, "planned_tasks")
	if again[0] == 'X' {
		t.Fatal("memory store leaked its buffer")
	}

	_ = m.Close()
	if err := m.Set(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("set after close = %v", err)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "tasks"))
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, f)

	if _, err := os.Stat(filepath.Join(dir, "tasks", "planned_tasks.json")); err != nil {
		t.Fatalf("expected planned_tasks.json: %v", err)
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "calplan.db")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exercise(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Data survives reopening.
	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "planned_tasks")
	if err != nil || string(got) != `{"v":2}` {
		t.Fatalf("after reopen = %q, %v", got, err)
	}
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client, redisPrefix)
	defer s.Close()

	exercise(t, s)

	raw, err := mr.Get("calplan:planned_tasks")
	if err != nil || raw != `{"v":2}` {
		t.Fatalf("raw redis value = %q, %v", raw, err)
	}
}

func TestOpenRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), config.StoreConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exercise(t, s)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("CALPLAN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALPLAN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer p.Close()
	if _, err := p.pool.Exec(ctx, `DELETE FROM calplan_kv`); err != nil {
		t.Fatal(err)
	}
	exercise(t, p)
}

func TestAzTables(t *testing.T) {
	conn := os.Getenv("CALPLAN_TEST_AZTABLES_CONN")
	if conn == "" {
		t.Skip("CALPLAN_TEST_AZTABLES_CONN not set")
	}
	a, err := OpenAzTables(context.Background(), conn, "calplantest")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exercise(t, a)
}

func TestRowKeyEscapesForbiddenCharacters(t *testing.T) {
	got := rowKey(`a/b\c#d?e`)
	for _, bad := range []string{"/", `\`, "#", "?"} {
		if strings.Contains(got, bad) {
			t.Fatalf("row key %q still contains %q", got, bad)
		}
	}
}

func TestOpenFactory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, s)

	s, err = Open(ctx, config.StoreConfig{Backend: "sqlite", Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exercise(t, s)

	if _, err := Open(ctx, config.StoreConfig{Backend: "etcd"}); err == nil {
		t.Fatal("unknown backend should fail")
	}
}
