package web

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"calplan/internal/assistant"
	"calplan/internal/model"
)

type assistantRequest struct {
	Title     string     `json:"title"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

type assistantResponse struct {
	Accepted bool        `json:"accepted"`
	Status   int         `json:"status,omitempty"`
	Action   string      `json:"action,omitempty"`
	TaskID   string      `json:"taskId,omitempty"`
	Applied  bool        `json:"applied"`
	Sentinel bool        `json:"sentinel"`
	Task     *model.Task `json:"task,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// handleAssistant forwards a request to the assistant and waits for its
// reply. A missing start defaults to now and a missing end to one hour later.
func (s *Server) handleAssistant(c echo.Context) error {
	if s.deps.Assistant == nil {
		return assistant.ErrNotConfigured
	}
	var req assistantRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	start := time.Now().In(s.deps.Location)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	end := start.Add(time.Hour)
	if req.EndDate != nil {
		end = *req.EndDate
	}

	var res assistant.Result
	select {
	case res = <-s.deps.Assistant.Send(c.Request().Context(), req.Title, start, end):
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}

	if !res.Accepted && res.Status == 0 && res.Err != nil {
		// Rejected before anything was sent.
		if status, _ := statusFor(res.Err); status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
			return res.Err
		}
	}

	resp := assistantResponse{
		Accepted: res.Accepted,
		Status:   res.Status,
		Action:   string(res.Outcome.Action),
		TaskID:   res.Outcome.TaskID,
		Applied:  res.Outcome.Applied,
		Sentinel: res.Sentinel,
		Task:     res.Task,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	code := http.StatusOK
	if !res.Accepted {
		code = http.StatusBadGateway
	}
	return c.JSON(code, resp)
}
