package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"calplan/internal/calendar"
	"calplan/internal/dategrid"
	"calplan/internal/model"
)

type monthResponse struct {
	Month    string          `json:"month"`
	Target   string          `json:"target"`
	State    string          `json:"state"`
	Stale    bool            `json:"stale"`
	Error    string          `json:"error,omitempty"`
	Selected int             `json:"selected,omitempty"`
	Cells    []model.DayCell `json:"cells"`
}

func newMonthResponse(snap calendar.Snapshot) monthResponse {
	resp := monthResponse{
		Month:    snap.Month.String(),
		Target:   snap.Target.String(),
		State:    snap.State.String(),
		Stale:    snap.Stale,
		Selected: snap.Selected,
		Cells:    snap.Cells,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if resp.Cells == nil {
		resp.Cells = []model.DayCell{}
	}
	return resp
}

// respondSettled waits briefly for an in-flight load so clients see its
// result. A load still running after the timeout is reported as loading.
func (s *Server) respondSettled(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), settleTimeout)
	defer cancel()
	snap, _ := s.deps.Calendar.Settle(ctx)
	return c.JSON(http.StatusOK, newMonthResponse(snap))
}

func (s *Server) handleMonth(c echo.Context) error {
	return s.respondSettled(c)
}

type changeMonthRequest struct {
	By    int    `json:"by"`
	Month string `json:"month,omitempty"`
}

func (s *Server) handleChangeMonth(c echo.Context) error {
	var req changeMonthRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if req.Month != "" {
		ym, err := dategrid.ParseYearMonth(req.Month)
		if err != nil {
			return err
		}
		if err := s.deps.Calendar.ShowMonth(ctx, ym); err != nil {
			return err
		}
	} else if err := s.deps.Calendar.ChangeMonth(ctx, req.By); err != nil {
		return err
	}
	return s.respondSettled(c)
}

func (s *Server) handleToday(c echo.Context) error {
	if err := s.deps.Calendar.GoToToday(c.Request().Context()); err != nil {
		return err
	}
	return s.respondSettled(c)
}

func (s *Server) handleRefresh(c echo.Context) error {
	if err := s.deps.Calendar.Refresh(c.Request().Context()); err != nil {
		return err
	}
	return s.respondSettled(c)
}

type selectRequest struct {
	Day int `json:"day"`
}

// handleSelect selects a day of the displayed month; day 0 clears.
func (s *Server) handleSelect(c echo.Context) error {
	var req selectRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Day == 0 {
		s.deps.Calendar.ClearSelection()
	} else if err := s.deps.Calendar.SelectDate(req.Day); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newMonthResponse(s.deps.Calendar.Snapshot()))
}

type dayEventsResponse struct {
	Month  string              `json:"month"`
	Day    int                 `json:"day"`
	Events []model.EventRecord `json:"events"`
}

// handleDayEvents serves the indexed events of a day. With ?source=store it
// queries the store for everything overlapping the day instead.
func (s *Server) handleDayEvents(c echo.Context) error {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || day < 1 || day > 31 {
		return calendar.ErrInvalidDay
	}

	var events []model.EventRecord
	if c.QueryParam("source") == "store" {
		events, err = s.deps.Calendar.LoadDayEvents(c.Request().Context(), day)
		if err != nil {
			return err
		}
	} else {
		events = s.deps.Calendar.EventsFor(day)
	}
	if events == nil {
		events = []model.EventRecord{}
	}
	return c.JSON(http.StatusOK, dayEventsResponse{
		Month:  s.deps.Calendar.Snapshot().Month.String(),
		Day:    day,
		Events: events,
	})
}

func (s *Server) handleAddEvent(c echo.Context) error {
	var rec model.EventRecord
	if err := bindJSON(c, &rec); err != nil {
		return err
	}
	added, err := s.deps.Calendar.AddEvent(c.Request().Context(), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, added)
}

func (s *Server) handleModifyEvent(c echo.Context) error {
	var rec model.EventRecord
	if err := bindJSON(c, &rec); err != nil {
		return err
	}
	rec.ID = c.Param("id")
	if err := s.deps.Calendar.ModifyEvent(c.Request().Context(), rec); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteEvent(c echo.Context) error {
	if err := s.deps.Calendar.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
