package assistant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"calplan/internal/model"
)

// ErrNoPayload is returned by ExtractPayload when no candidate span decodes
// to a task payload.
var ErrNoPayload = errors.New("no task payload in response")

// Payload is the task-shaped record the assistant embeds in its reply.
// Dates stay as strings until Task converts them.
type Payload struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	StartDate  string         `json:"startDate"`
	EndDate    string         `json:"endDate"`
	ActionType string         `json:"actionType"`
	Arguments  map[string]any `json:"arguments"`
}

// usable reports whether p names anything a reconciliation could act on.
func (p Payload) usable() bool {
	if p.ID == "" && p.Title == "" && p.ActionType == "" && p.argString("title") == "" {
		return false
	}
	_, err := model.ParseActionKind(p.ActionType)
	return err == nil
}

func (p Payload) argString(key string) string {
	if v, ok := p.Arguments[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Task converts p into a local task. Missing top-level fields fall back to
// the same keys inside arguments. Zoneless dates are read in loc.
func (p Payload) Task(loc *time.Location) (model.Task, error) {
	action, err := model.ParseActionKind(p.ActionType)
	if err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:     strings.TrimSpace(p.ID),
		Title:  firstNonEmpty(p.Title, p.argString("title")),
		Action: action,
		Details: model.TaskDetails{
			Location: p.argString("location"),
			Notes:    p.argString("notes"),
		},
	}
	if t.Start, err = parseDate(firstNonEmpty(p.StartDate, p.argString("startDate")), loc); err != nil {
		return model.Task{}, fmt.Errorf("startDate: %w", err)
	}
	if t.End, err = parseDate(firstNonEmpty(p.EndDate, p.argString("endDate")), loc); err != nil {
		return model.Task{}, fmt.Errorf("endDate: %w", err)
	}
	return t, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339 or a zoneless local time. Empty yields the zero
// time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ExtractPayload finds the task payload in a free-text reply. It tries the
// whole text, then each balanced top-level {...} span in order, then the span
// from the first '{' to the last '}'.
func ExtractPayload(text string) (Payload, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Payload{}, ErrNoPayload
	}
	if p, ok := decodePayload(trimmed); ok {
		return p, nil
	}
	for _, span := range objectSpans(trimmed) {
		if p, ok := decodePayload(span); ok {
			return p, nil
		}
	}
	first := strings.IndexByte(trimmed, '{')
	last := strings.LastIndexByte(trimmed, '}')
	if first >= 0 && last > first {
		if p, ok := decodePayload(trimmed[first : last+1]); ok {
			return p, nil
		}
	}
	return Payload{}, ErrNoPayload
}

func decodePayload(s string) (Payload, bool) {
	if !strings.HasPrefix(s, "{") {
		return Payload{}, false
	}
	var p Payload
	if err := sonic.ConfigStd.UnmarshalFromString(s, &p); err != nil {
		return Payload{}, false
	}
	return p, p.usable()
}

// objectSpans returns every outermost balanced {...} span in s. Quotes are
// only tracked inside an object so that apostrophes and quotes in the
// surrounding prose do not hide braces.
func objectSpans(s string) []string {
	var (
		spans    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, s[start:i+1])
			}
		}
	}
	return spans
}
