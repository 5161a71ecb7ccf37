package assistant

import (
	"context"
	"errors"
	"fmt"

	appLog "calplan/internal/log"
	"calplan/internal/model"
	"calplan/internal/tasks"
)

// Reconciler is the part of the task list the bridge mutates.
// *tasks.Store satisfies it.
type Reconciler interface {
	Insert(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, id string, f tasks.Fields) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// Outcome reports what a reconciliation did to the task list. Applied is
// false when an edit or delete named an id the list does not hold.
type Outcome struct {
	Action  model.ActionKind
	TaskID  string
	Applied bool
}

// Reconcile merges t into r according to t.Action. Only the task named by t
// is touched, so concurrent reconciliations may interleave freely.
func Reconcile(ctx context.Context, r Reconciler, t model.Task) (Outcome, error) {
	switch t.Action {
	case model.ActionAdd, "":
		if t.Title == "" {
			return Outcome{Action: model.ActionAdd}, &DecodeError{Reason: "add without title"}
		}
		t.Action = model.ActionAdd
		added, err := r.Insert(ctx, t)
		if errors.Is(err, tasks.ErrInvalidTask) {
			return Outcome{Action: model.ActionAdd}, &DecodeError{Reason: "invalid task", Err: err}
		}
		if added.ID == "" {
			return Outcome{Action: model.ActionAdd}, err
		}
		appLog.Info("assistant task added", "id", added.ID, "title", added.Title)
		return Outcome{Action: model.ActionAdd, TaskID: added.ID, Applied: true}, err

	case model.ActionEdit:
		found, err := r.Update(ctx, t.ID, editFields(t))
		if errors.Is(err, tasks.ErrInvalidTask) {
			return Outcome{Action: model.ActionEdit, TaskID: t.ID}, &DecodeError{Reason: "invalid edit", Err: err}
		}
		if !found {
			appLog.Debug("assistant edit dropped: unknown id", "id", t.ID)
		}
		return Outcome{Action: model.ActionEdit, TaskID: t.ID, Applied: found}, err

	case model.ActionDelete:
		removed, err := r.Remove(ctx, t.ID)
		if !removed {
			appLog.Debug("assistant delete dropped: unknown id", "id", t.ID)
		}
		return Outcome{Action: model.ActionDelete, TaskID: t.ID, Applied: removed}, err
	}
	return Outcome{}, &DecodeError{Reason: fmt.Sprintf("unknown action %q", t.Action)}
}

// editFields keeps the title and dates the payload omits. Details are
// always replaced, so an edit without arguments clears them.
func editFields(t model.Task) tasks.Fields {
	f := tasks.Fields{Details: &t.Details}
	if t.Title != "" {
		f.Title = &t.Title
	}
	if !t.Start.IsZero() {
		f.Start = &t.Start
	}
	if !t.End.IsZero() {
		f.End = &t.End
	}
	return f
}
