package assistant

import (
	"errors"
	"testing"
	"time"

	"calplan/internal/model"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantID    string
		wantTitle string
	}{
		{
			name:      "bare object",
			text:      `{"id":"1","title":"Gym","actionType":"add"}`,
			wantID:    "1",
			wantTitle: "Gym",
		},
		{
			name:      "embedded in prose",
			text:      `Sure! Here is your task: {"id":"abc","title":"Gym","startDate":"2024-03-02T07:00:00Z","endDate":"2024-03-02T08:00:00Z","actionType":"add","arguments":{}}`,
			wantID:    "abc",
			wantTitle: "Gym",
		},
		{
			name:      "braces inside strings",
			text:      `ok {"id":"2","title":"set up } and { braces","actionType":"add"} done`,
			wantID:    "2",
			wantTitle: "set up } and { braces",
		},
		{
			name:      "escaped quote inside string",
			text:      `{"id":"3","title":"say \"hi\" {now}","actionType":"add"}`,
			wantID:    "3",
			wantTitle: `say "hi" {now}`,
		},
		{
			name:      "prose quotes and stray brace before payload",
			text:      `Here's what I "found" } anyway: {"id":"4","title":"Dentist","actionType":"edit"}`,
			wantID:    "4",
			wantTitle: "Dentist",
		},
		{
			name:      "first span unusable",
			text:      `Template {} then {"id":"5","title":"Run","actionType":"delete"}`,
			wantID:    "5",
			wantTitle: "Run",
		},
		{
			name:      "nested arguments",
			text:      `{"id":"6","title":"Call","actionType":"add","arguments":{"location":"Office","extra":{"k":1}}}`,
			wantID:    "6",
			wantTitle: "Call",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ExtractPayload(tt.text)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if p.ID != tt.wantID || p.Title != tt.wantTitle {
				t.Fatalf("payload = %+v", p)
			}
		})
	}
}

func TestExtractPayloadRejects(t *testing.T) {
	for _, text := range []string{
		"",
		"I could not understand that request.",
		"{not json at all}",
		`{"foo":"bar"}`,
		`{"title":"x","actionType":"launch"}`,
	} {
		if _, err := ExtractPayload(text); !errors.Is(err, ErrNoPayload) {
			t.Errorf("ExtractPayload(%q) = %v, want ErrNoPayload", text, err)
		}
	}
}

func TestObjectSpans(t *testing.T) {
	got := objectSpans(`a {"x":{"y":1}} b {"z":"}"} c {`)
	want := []string{`{"x":{"y":1}}`, `{"z":"}"}`}
	if len(got) != len(want) {
		t.Fatalf("spans = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("span %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPayloadTask(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)

	p := Payload{
		ID:         "abc",
		StartDate:  "2024-03-02T07:00:00Z",
		EndDate:    "2024-03-02 09:30",
		ActionType: "update",
		Arguments: map[string]any{
			"title":    "From args",
			"location": "Gym",
			"notes":    "bring shoes",
			"count":    3.0,
		},
	}
	task, err := p.Task(seoul)
	if err != nil {
		t.Fatal(err)
	}
	if task.Action != model.ActionEdit || task.Title != "From args" {
		t.Fatalf("task = %+v", task)
	}
	if !task.Start.Equal(time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", task.Start)
	}
	if !task.End.Equal(time.Date(2024, 3, 2, 9, 30, 0, 0, seoul)) {
		t.Fatalf("zoneless end = %v", task.End)
	}
	if task.Details != (model.TaskDetails{Location: "Gym", Notes: "bring shoes"}) {
		t.Fatalf("details = %+v", task.Details)
	}

	if _, err := (Payload{Title: "x", StartDate: "tomorrow"}).Task(seoul); err == nil {
		t.Fatal("unparseable date should fail")
	}
}
