package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"calplan/internal/assistant"
	"calplan/internal/calendar"
	"calplan/internal/calstore"
	"calplan/internal/config"
	"calplan/internal/kv"
	"calplan/internal/model"
	"calplan/internal/tasks"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	mem   *calstore.Memory
	tasks *tasks.Store
	cal   *calendar.Controller
}

func newFixture(t *testing.T, cfg *config.Config, assistantURL string) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{Listen: "127.0.0.1:0"}
	}
	mem := calstore.NewMemory(
		model.EventRecord{ID: "standup", Title: "Standup", Start: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)},
		model.EventRecord{ID: "trip", Title: "Trip", Start: time.Date(2024, 3, 19, 8, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 21, 18, 0, 0, 0, time.UTC)},
	)
	cal := calendar.New(mem, calendar.Options{
		Location:  time.UTC,
		WeekStart: time.Sunday,
		Now:       func() time.Time { return fixedNow },
	})
	if err := cal.Start(context.Background()); err != nil {
		t.Fatalf("start calendar: %v", err)
	}
	cal.Wait()

	store := tasks.New(kv.NewMemory(), tasks.Options{})
	deps := Deps{Calendar: cal, Tasks: store, Location: time.UTC}
	if assistantURL != "" {
		deps.Assistant = assistant.New(assistant.Config{URL: assistantURL, Timeout: 2 * time.Second, Location: time.UTC}, store)
	}
	return &fixture{srv: NewServer(cfg, deps), mem: mem, tasks: store, cal: cal}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := sonic.ConfigStd.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, want, rec.Body.String())
	}
}

func TestHealthIsPublicWithBasicAuth(t *testing.T) {
	cfg := &config.Config{
		Listen:    "127.0.0.1:0",
		BasicAuth: &config.BasicAuthConfig{Username: "admin", Password: "s3cret"},
	}
	f := newFixture(t, cfg, "")

	rec := f.do(t, http.MethodGet, "/health", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "ok\n" {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/month", "")
	expectStatus(t, rec, http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/api/month", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)

	req = httptest.NewRequest(http.MethodGet, "/api/month", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
}

func TestEmptyCredentialsDisableAuth(t *testing.T) {
	cfg := &config.Config{Listen: "127.0.0.1:0", BasicAuth: &config.BasicAuthConfig{Username: "admin"}}
	f := newFixture(t, cfg, "")
	expectStatus(t, f.do(t, http.MethodGet, "/api/month", ""), http.StatusOK)
}

func TestMonthReportsCells(t *testing.T) {
	f := newFixture(t, nil, "")
	rec := f.do(t, http.MethodGet, "/api/month", "")
	expectStatus(t, rec, http.StatusOK)

	var got monthResponse
	decode(t, rec, &got)
	if got.Month != "2024-03" || got.Target != "2024-03" || got.State != "ready" || got.Stale {
		t.Fatalf("unexpected month header: %+v", got)
	}
	// March 2024 starts on a Friday: five leading pads with Sunday weeks.
	if len(got.Cells) != 36 {
		t.Fatalf("len(cells) = %d, want 36", len(got.Cells))
	}
	var withEvents []int
	for _, c := range got.Cells {
		if c.HasEvent {
			withEvents = append(withEvents, c.Day)
		}
		if c.Day == 15 && !c.IsToday {
			t.Fatalf("day 15 should be today")
		}
	}
	if len(withEvents) != 2 || withEvents[0] != 4 || withEvents[1] != 19 {
		t.Fatalf("event days = %v, want [4 19]", withEvents)
	}
}

func TestChangeMonth(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/month/change", `{"by":1}`)
	expectStatus(t, rec, http.StatusOK)
	var got monthResponse
	decode(t, rec, &got)
	if got.Month != "2024-04" || got.State != "ready" {
		t.Fatalf("after +1: %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/api/month/change", `{"month":"2015-02"}`)
	expectStatus(t, rec, http.StatusOK)
	got = monthResponse{}
	decode(t, rec, &got)
	if got.Month != "2015-02" || len(got.Cells) != 28 {
		t.Fatalf("after jump: month=%s cells=%d", got.Month, len(got.Cells))
	}

	rec = f.do(t, http.MethodPost, "/api/month/today", "")
	expectStatus(t, rec, http.StatusOK)
	got = monthResponse{}
	decode(t, rec, &got)
	if got.Month != "2024-03" {
		t.Fatalf("today: month = %s", got.Month)
	}
}

func TestChangeMonthErrors(t *testing.T) {
	f := newFixture(t, nil, "")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"out of range", `{"by":-30000}`, http.StatusBadRequest},
		{"bad month", `{"month":"2024-13"}`, http.StatusBadRequest},
		{"unknown field", `{"months":1}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/month/change", tc.body)
			expectStatus(t, rec, tc.want)
			var e errorResponse
			decode(t, rec, &e)
			if e.Error == "" {
				t.Fatalf("missing error message")
			}
		})
	}

	if got := f.cal.Snapshot().Target.String(); got != "2024-03" {
		t.Fatalf("target moved to %s after rejected changes", got)
	}
}

func TestSelectAndClear(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/select", `{"day":19}`)
	expectStatus(t, rec, http.StatusOK)
	var got monthResponse
	decode(t, rec, &got)
	if got.Selected != 19 {
		t.Fatalf("selected = %d", got.Selected)
	}
	selected := 0
	for _, c := range got.Cells {
		if c.IsSelected {
			selected++
			if c.Day != 19 {
				t.Fatalf("day %d selected", c.Day)
			}
		}
	}
	if selected != 1 {
		t.Fatalf("%d cells selected", selected)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/select", `{"day":32}`), http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/api/select", `{"day":0}`)
	expectStatus(t, rec, http.StatusOK)
	got = monthResponse{}
	decode(t, rec, &got)
	if got.Selected != 0 {
		t.Fatalf("selection not cleared: %d", got.Selected)
	}
}

func TestDayEvents(t *testing.T) {
	f := newFixture(t, nil, "")

	var got dayEventsResponse
	rec := f.do(t, http.MethodGet, "/api/days/19/events", "")
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &got)
	if len(got.Events) != 1 || got.Events[0].ID != "trip" {
		t.Fatalf("day 19 = %+v", got.Events)
	}

	// The trip started on the 19th, so only the store query sees it on the 20th.
	got = dayEventsResponse{}
	decode(t, f.do(t, http.MethodGet, "/api/days/20/events", ""), &got)
	if len(got.Events) != 0 {
		t.Fatalf("indexed day 20 = %+v", got.Events)
	}
	got = dayEventsResponse{}
	decode(t, f.do(t, http.MethodGet, "/api/days/20/events?source=store", ""), &got)
	if len(got.Events) != 1 || got.Events[0].ID != "trip" {
		t.Fatalf("store day 20 = %+v", got.Events)
	}

	expectStatus(t, f.do(t, http.MethodGet, "/api/days/0/events", ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodGet, "/api/days/x/events", ""), http.StatusBadRequest)
}

func TestEventLifecycle(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/events",
		`{"title":"Dentist","start":"2024-03-27T15:00:00Z","end":"2024-03-27T16:00:00Z"}`)
	expectStatus(t, rec, http.StatusCreated)
	var added model.EventRecord
	decode(t, rec, &added)
	if added.ID == "" || added.Priority != model.DefaultPriority {
		t.Fatalf("added = %+v", added)
	}
	if _, err := f.cal.Settle(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(f.cal.EventsFor(27)) != 1 {
		t.Fatalf("day 27 not indexed after add")
	}

	rec = f.do(t, http.MethodPut, "/api/events/"+added.ID,
		`{"title":"Dentist","start":"2024-03-28T15:00:00Z","end":"2024-03-28T16:00:00Z"}`)
	expectStatus(t, rec, http.StatusOK)
	f.cal.Wait()
	if len(f.cal.EventsFor(27)) != 0 || len(f.cal.EventsFor(28)) != 1 {
		t.Fatalf("move not reflected")
	}

	expectStatus(t, f.do(t, http.MethodDelete, "/api/events/"+added.ID, ""), http.StatusNoContent)
	f.cal.Wait()
	if len(f.cal.EventsFor(28)) != 0 {
		t.Fatalf("delete not reflected")
	}

	expectStatus(t, f.do(t, http.MethodDelete, "/api/events/"+added.ID, ""), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPost, "/api/events", `{"title":"","start":"2024-03-27T15:00:00Z","end":"2024-03-27T16:00:00Z"}`), http.StatusBadRequest)
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/tasks",
		`{"title":"Gym","startDate":"2024-03-16T07:00:00Z","endDate":"2024-03-16T08:00:00Z","details":{"location":"Club"}}`)
	expectStatus(t, rec, http.StatusCreated)
	var created taskResponse
	decode(t, rec, &created)
	if created.Task.ID == "" || !created.Persisted || created.Task.Details.Location != "Club" {
		t.Fatalf("created = %+v", created)
	}

	rec = f.do(t, http.MethodPatch, "/api/tasks/"+created.Task.ID, `{"title":"Gym (legs)","actionType":"edit"}`)
	expectStatus(t, rec, http.StatusOK)
	var updated taskResponse
	decode(t, rec, &updated)
	if updated.Task.Title != "Gym (legs)" || updated.Task.Action != model.ActionEdit || !updated.Task.Start.Equal(created.Task.Start) {
		t.Fatalf("updated = %+v", updated.Task)
	}

	var list taskListResponse
	decode(t, f.do(t, http.MethodGet, "/api/tasks", ""), &list)
	if len(list.Tasks) != 1 || list.Tasks[0].Title != "Gym (legs)" {
		t.Fatalf("list = %+v", list.Tasks)
	}

	expectStatus(t, f.do(t, http.MethodPatch, "/api/tasks/"+created.Task.ID, `{"actionType":"bogus"}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPatch, "/api/tasks/missing", `{"title":"x"}`), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPost, "/api/tasks", `{"title":"  "}`), http.StatusBadRequest)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/tasks/"+created.Task.ID, ""), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/tasks/"+created.Task.ID, ""), http.StatusNotFound)
	if f.tasks.Len() != 0 {
		t.Fatalf("tasks left: %d", f.tasks.Len())
	}
}

func TestAssistantEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Sure! {\"title\":\"Gym\",\"startDate\":\"2024-03-16T07:00:00Z\",\"endDate\":\"2024-03-16T08:00:00Z\",\"actionType\":\"add\"}"}`))
	}))
	t.Cleanup(upstream.Close)
	f := newFixture(t, nil, upstream.URL)

	rec := f.do(t, http.MethodPost, "/api/assistant",
		`{"title":"gym tomorrow morning","startDate":"2024-03-16T07:00:00Z","endDate":"2024-03-16T08:00:00Z"}`)
	expectStatus(t, rec, http.StatusOK)
	var got assistantResponse
	decode(t, rec, &got)
	if !got.Accepted || !got.Applied || got.Sentinel || got.Action != "add" || got.TaskID == "" {
		t.Fatalf("response = %+v", got)
	}
	if all := f.tasks.All(); len(all) != 1 || all[0].Title != "Gym" {
		t.Fatalf("tasks = %+v", all)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/assistant", `{"title":""}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/assistant",
		`{"title":"gym","startDate":"2024-03-16T08:00:00Z","endDate":"2024-03-16T07:00:00Z"}`), http.StatusBadRequest)
	if f.tasks.Len() != 1 {
		t.Fatalf("inverted range stored a task: %+v", f.tasks.All())
	}
}

func TestAssistantUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)
	f := newFixture(t, nil, upstream.URL)

	rec := f.do(t, http.MethodPost, "/api/assistant", `{"title":"gym"}`)
	expectStatus(t, rec, http.StatusBadGateway)
	var got assistantResponse
	decode(t, rec, &got)
	if got.Accepted || got.Status != http.StatusInternalServerError || got.Error == "" {
		t.Fatalf("response = %+v", got)
	}
	if f.tasks.Len() != 0 {
		t.Fatalf("store touched on failure")
	}
}

func TestAssistantNotConfigured(t *testing.T) {
	f := newFixture(t, nil, "")
	expectStatus(t, f.do(t, http.MethodPost, "/api/assistant", `{"title":"gym"}`), http.StatusServiceUnavailable)
}
