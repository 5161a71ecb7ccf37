package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	appLog "calplan/internal/log"
	"calplan/internal/model"
	"calplan/internal/tasks"
)

type taskListResponse struct {
	Tasks []model.Task `json:"tasks"`
}

type taskRequest struct {
	Title     string            `json:"title"`
	StartDate time.Time         `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Details   model.TaskDetails `json:"details"`
}

type taskPatch struct {
	Title      *string            `json:"title"`
	StartDate  *time.Time         `json:"startDate"`
	EndDate    *time.Time         `json:"endDate"`
	ActionType *string            `json:"actionType"`
	Details    *model.TaskDetails `json:"details"`
}

// taskResponse reports a mutation. Persisted is false when the change was
// applied in memory but could not be written back.
type taskResponse struct {
	Task      model.Task `json:"task"`
	Persisted bool       `json:"persisted"`
	Warning   string     `json:"warning,omitempty"`
}

// persistOutcome splits a persistence failure from other errors.
func persistOutcome(err error) (bool, string, error) {
	if err == nil {
		return true, "", nil
	}
	if errors.Is(err, tasks.ErrPersistence) {
		appLog.Warn("task change kept in memory only", "error", err)
		return false, err.Error(), nil
	}
	return false, "", err
}

func (s *Server) handleListTasks(c echo.Context) error {
	all := s.deps.Tasks.All()
	if all == nil {
		all = []model.Task{}
	}
	return c.JSON(http.StatusOK, taskListResponse{Tasks: all})
}

func (s *Server) handleAddTask(c echo.Context) error {
	var req taskRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	t, err := s.deps.Tasks.Insert(c.Request().Context(), model.Task{
		Title:   req.Title,
		Start:   req.StartDate,
		End:     req.EndDate,
		Action:  model.ActionAdd,
		Details: req.Details,
	})
	persisted, warning, err := persistOutcome(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, taskResponse{Task: t, Persisted: persisted, Warning: warning})
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	var req taskPatch
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	f := tasks.Fields{
		Title:   req.Title,
		Start:   req.StartDate,
		End:     req.EndDate,
		Details: req.Details,
	}
	if req.ActionType != nil {
		kind, err := model.ParseActionKind(*req.ActionType)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Action = &kind
	}

	id := c.Param("id")
	found, err := s.deps.Tasks.Update(c.Request().Context(), id, f)
	persisted, warning, err := persistOutcome(err)
	if err != nil {
		return err
	}
	if !found {
		return errTaskNotFound
	}
	t, _ := s.deps.Tasks.Get(id)
	return c.JSON(http.StatusOK, taskResponse{Task: t, Persisted: persisted, Warning: warning})
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	found, err := s.deps.Tasks.Remove(c.Request().Context(), c.Param("id"))
	persisted, _, err := persistOutcome(err)
	if err != nil {
		return err
	}
	if !found {
		return errTaskNotFound
	}
	if !persisted {
		c.Response().Header().Set("X-Calplan-Warning", "not persisted")
	}
	return c.NoContent(http.StatusNoContent)
}
