package ics

import (
	"context"
	"time"

	"calplan/internal/calstore"
	"calplan/internal/model"
)

// FeedStore is a read-only calendar backed by an ICS subscription.
type FeedStore struct {
	fetcher *Fetcher
	src     Source
	loc     *time.Location
}

var _ calstore.Store = (*FeedStore)(nil)

func NewFeedStore(fetcher *Fetcher, src Source, loc *time.Location) *FeedStore {
	if loc == nil {
		loc = time.Local
	}
	return &FeedStore{fetcher: fetcher, src: src, loc: loc}
}

func (s *FeedStore) RequestAccess(ctx context.Context) (bool, error) {
	return s.src.URL != "", nil
}

func (s *FeedStore) FetchEvents(ctx context.Context, start, end time.Time) ([]model.EventRecord, error) {
	res, err := s.fetcher.FetchOne(ctx, s.src)
	if err != nil {
		return nil, err
	}
	all, err := ParseEvents(s.src, res.Body, s.loc)
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

func (s *FeedStore) AddEvent(context.Context, model.EventRecord) (model.EventRecord, error) {
	return model.EventRecord{}, calstore.ErrReadOnly
}

func (s *FeedStore) ModifyEvent(context.Context, model.EventRecord) error {
	return calstore.ErrReadOnly
}

func (s *FeedStore) DeleteEvent(context.Context, string) error {
	return calstore.ErrReadOnly
}
