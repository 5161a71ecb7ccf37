package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmptySpecDisables(t *testing.T) {
	s, err := New("", nil, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if s.Enabled() || !s.Next().IsZero() {
		t.Fatal("empty spec should disable the scheduler")
	}
	s.Start(context.Background())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestInvalidSpec(t *testing.T) {
	for _, spec := range []string{"every minute", "* * *", "61 * * * *"} {
		if _, err := New(spec, time.UTC, func(context.Context) error { return nil }); err == nil {
			t.Errorf("New(%q) should fail", spec)
		}
	}
}

func TestNextUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	s, err := New("30 6 * * *", seoul, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	next := s.Next().In(seoul)
	if next.Hour() != 6 || next.Minute() != 30 {
		t.Fatalf("next = %v", next)
	}
}

func TestJobRunsAndReceivesContext(t *testing.T) {
	type key struct{}
	var runs atomic.Int32
	sawValue := make(chan bool, 1)

	s, err := New("@every 1s", time.UTC, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			sawValue <- ctx.Value(key{}) == "calplan"
		}
		return errors.New("job errors are logged, not fatal")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.WithValue(context.Background(), key{}, "calplan"))

	select {
	case ok := <-sawValue:
		if !ok {
			t.Fatal("job did not receive the start context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
