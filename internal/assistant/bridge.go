// Package assistant forwards a task description to the remote planning
// assistant and merges whatever task it sends back into the local list.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appLog "calplan/internal/log"
	"calplan/internal/model"
)

const (
	// SentinelTitle marks a task synthesized from a reply that held no
	// usable payload.
	SentinelTitle = "ERROR!"

	tracerName   = "calplan/internal/assistant"
	spanName     = "assistant.send"
	maxBodyBytes = 1 << 20
	snippetLen   = 200
)

var (
	ErrDecode        = errors.New("assistant response not decodable")
	ErrNotConfigured = errors.New("assistant URL is not configured")
	ErrEmptyTitle    = errors.New("assistant request title is empty")
	ErrEmptyResponse = errors.New("assistant response body is empty")
	ErrInvalidRange  = errors.New("assistant request ends before it starts")
)

// DecodeError means a reply arrived but did not carry a usable task.
type DecodeError struct {
	Reason string
	Text   string // leading part of the reply
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assistant: %s: %v", e.Reason, e.Err)
	}
	return "assistant: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// StatusError is a non-200 reply.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "assistant: unexpected status " + e.Status }

type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	// Client defaults to a plain http.Client; Timeout is applied per request
	// either way.
	Client *http.Client
	// Location interprets zoneless dates in replies. Defaults to time.Local.
	Location *time.Location
}

// Result is delivered once per Send.
type Result struct {
	// Accepted is true when a 200 reply with a non-empty body arrived.
	Accepted bool
	Status   int
	// Task is the decoded payload, nil when none was usable.
	Task    *model.Task
	Outcome Outcome
	// Sentinel is true when an ERROR! task was stored in place of a payload.
	Sentinel bool
	Err      error
}

type Bridge struct {
	cfg    Config
	client *http.Client
	tasks  Reconciler
}

func New(cfg Config, r Reconciler) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Kairos-calplan/0.1"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Bridge{cfg: cfg, client: client, tasks: r}
}

// Send runs Do in the background. The channel yields exactly one Result and
// is then closed. Replies from concurrent sends may arrive in any order.
func (b *Bridge) Send(ctx context.Context, title string, start, end time.Time) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- b.Do(ctx, title, start, end)
	}()
	return ch
}

// Do posts the request, waits for the reply and reconciles it.
func (b *Bridge) Do(ctx context.Context, title string, start, end time.Time) Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("calplan.assistant.title_len", len(title))),
	)
	defer span.End()

	res := b.do(ctx, title, start, end)

	attrs := []attribute.KeyValue{
		attribute.Bool("calplan.assistant.accepted", res.Accepted),
		attribute.Bool("calplan.assistant.sentinel", res.Sentinel),
		attribute.Bool("calplan.assistant.applied", res.Outcome.Applied),
	}
	if res.Status != 0 {
		attrs = append(attrs, attribute.Int("http.status_code", res.Status))
	}
	if res.Outcome.Action != "" {
		attrs = append(attrs, attribute.String("calplan.assistant.action", string(res.Outcome.Action)))
	}
	span.SetAttributes(attrs...)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res
}

type request struct {
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type envelope struct {
	Response *string `json:"response"`
}

func (b *Bridge) do(ctx context.Context, title string, start, end time.Time) Result {
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{Err: ErrEmptyTitle}
	}
	if end.Before(start) {
		return Result{Err: ErrInvalidRange}
	}
	if b.cfg.URL == "" {
		return Result{Err: ErrNotConfigured}
	}

	payload, err := sonic.ConfigStd.Marshal(request{
		Title:     title,
		StartDate: start.UTC().Format(time.RFC3339),
		EndDate:   end.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Result{Err: fmt.Errorf("assistant: encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: fmt.Errorf("assistant: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", b.cfg.UserAgent)

	appLog.Debug("assistant send", "url", appLog.RedactURL(b.cfg.URL), "title", title)

	resp, err := b.client.Do(req)
	if err != nil {
		appLog.Error("assistant request failed", err, "url", appLog.RedactURL(b.cfg.URL))
		return Result{Err: fmt.Errorf("assistant: post: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Warn("assistant non-OK status", "status", resp.StatusCode)
		return Result{Status: resp.StatusCode, Err: &StatusError{Code: resp.StatusCode, Status: resp.Status}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Status: resp.StatusCode, Err: fmt.Errorf("assistant: read body: %w", err)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Result{Status: resp.StatusCode, Err: ErrEmptyResponse}
	}

	res := b.reconcileReply(ctx, responseText(body), start, end)
	res.Accepted = true
	res.Status = resp.StatusCode
	return res
}

// responseText unwraps {"response": "..."}; any other body is used verbatim.
func responseText(body []byte) string {
	var env envelope
	if err := sonic.ConfigStd.Unmarshal(body, &env); err == nil && env.Response != nil {
		return *env.Response
	}
	return string(body)
}

func (b *Bridge) reconcileReply(ctx context.Context, text string, start, end time.Time) Result {
	p, err := ExtractPayload(text)
	if err != nil {
		return b.sentinel(ctx, text, start, end, &DecodeError{Reason: "extract payload", Text: snippet(text), Err: err})
	}
	t, err := p.Task(b.cfg.Location)
	if err != nil {
		return b.sentinel(ctx, text, start, end, &DecodeError{Reason: "convert payload", Text: snippet(text), Err: err})
	}

	outcome, err := Reconcile(ctx, b.tasks, t)
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		decErr.Text = snippet(text)
		return b.sentinel(ctx, text, start, end, decErr)
	}
	appLog.Info("assistant reply reconciled", "action", outcome.Action, "id", outcome.TaskID, "applied", outcome.Applied)
	return Result{Task: &t, Outcome: outcome, Err: err}
}

// sentinel stores an ERROR! task spanning the request's range so the user
// sees that a reply arrived.
func (b *Bridge) sentinel(ctx context.Context, text string, start, end time.Time, decErr *DecodeError) Result {
	appLog.Warn("assistant reply unusable", "reason", decErr.Reason, "text", decErr.Text)

	stored, err := b.tasks.Insert(ctx, model.Task{
		Title:   SentinelTitle,
		Start:   start,
		End:     end,
		Action:  model.ActionAdd,
		Details: model.TaskDetails{Notes: snippet(text)},
	})
	res := Result{Err: decErr}
	if stored.ID != "" {
		res.Sentinel = true
		res.Outcome = Outcome{Action: model.ActionAdd, TaskID: stored.ID, Applied: true}
	}
	if err != nil {
		res.Err = errors.Join(decErr, err)
	}
	return res
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > snippetLen {
		return string(r[:snippetLen]) + "..."
	}
	return s
}
