package ics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"calplan/internal/calstore"
	"calplan/internal/fsutil"
	appLog "calplan/internal/log"
	"calplan/internal/model"
)

// FileStore keeps the default calendar in a single .ics file. Every mutation
// rewrites the whole file atomically.
type FileStore struct {
	calstore.Signal

	path string
	loc  *time.Location
	now  func() time.Time

	mu sync.Mutex
}

var _ calstore.Store = (*FileStore)(nil)

func NewFileStore(path string, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	return &FileStore{Signal: calstore.NewSignal(), path: path, loc: loc, now: time.Now}
}

// RequestAccess creates the calendar file when missing and checks it parses.
func (s *FileStore) RequestAccess(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeLocked(nil); err != nil {
			appLog.Error("ics calendar file not writable", err, "path", s.path)
			return false, fmt.Errorf("%w: %v", calstore.ErrAccessDenied, err)
		}
		appLog.Info("ics calendar file created", "path", s.path)
		return true, nil
	}
	if _, err := s.readLocked(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, fmt.Errorf("%w: %v", calstore.ErrAccessDenied, err)
		}
		return false, err
	}
	return true, nil
}

func (s *FileStore) FetchEvents(ctx context.Context, start, end time.Time) ([]model.EventRecord, error) {
	s.mu.Lock()
	all, err := s.readLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]model.EventRecord, 0, len(all))
	for _, ev := range all {
		if calstore.Overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *FileStore) AddEvent(ctx context.Context, rec model.EventRecord) (model.EventRecord, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return model.EventRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := s.mutate(func(all []model.EventRecord) ([]model.EventRecord, error) {
		for _, ev := range all {
			if ev.ID == rec.ID {
				return nil, fmt.Errorf("calstore: event %s already exists", rec.ID)
			}
		}
		return append(all, rec), nil
	})
	if err != nil {
		return model.EventRecord{}, err
	}
	return rec, nil
}

func (s *FileStore) ModifyEvent(ctx context.Context, rec model.EventRecord) error {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.mutate(func(all []model.EventRecord) ([]model.EventRecord, error) {
		for i := range all {
			if all[i].ID == rec.ID {
				all[i] = rec
				return all, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", calstore.ErrNotFound, rec.ID)
	})
}

func (s *FileStore) DeleteEvent(ctx context.Context, id string) error {
	return s.mutate(func(all []model.EventRecord) ([]model.EventRecord, error) {
		for i := range all {
			if all[i].ID == id {
				return append(all[:i], all[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", calstore.ErrNotFound, id)
	})
}

func (s *FileStore) mutate(fn func([]model.EventRecord) ([]model.EventRecord, error)) error {
	s.mu.Lock()
	all, err := s.readLocked()
	if err == nil {
		all, err = fn(all)
	}
	if err == nil {
		err = s.writeLocked(all)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.Notify()
	return nil
}

func (s *FileStore) readLocked() ([]model.EventRecord, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return ParseEvents(Source{ID: filepath.Base(s.path)}, body, s.loc)
}

func (s *FileStore) writeLocked(all []model.EventRecord) error {
	return fsutil.WriteFileAtomic(s.path, Encode(all, s.loc, s.now()), 0o600)
}
