package model

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind is what an assistant payload asks the task list to do.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
)

// ParseActionKind accepts the three kinds case-insensitively. An empty string
// means add.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "add", "create":
		return ActionAdd, nil
	case "edit", "update":
		return ActionEdit, nil
	case "delete", "remove":
		return ActionDelete, nil
	default:
		return "", fmt.Errorf("unknown action kind %q", s)
	}
}

// TaskDetails holds the optional fields a task may carry besides its times.
type TaskDetails struct {
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (d TaskDetails) IsZero() bool { return d == TaskDetails{} }

// Task is a locally owned planned task.
type Task struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Start   time.Time   `json:"startDate"`
	End     time.Time   `json:"endDate"`
	Action  ActionKind  `json:"actionType"`
	Details TaskDetails `json:"details,omitzero"`
}

// Equal compares instants with time.Time.Equal so that tasks decoded from a
// different zone representation still match.
func (t Task) Equal(o Task) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Start.Equal(o.Start) &&
		t.End.Equal(o.End) &&
		t.Action == o.Action &&
		t.Details == o.Details
}
