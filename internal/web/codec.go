package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"calplan/internal/assistant"
	"calplan/internal/calendar"
	"calplan/internal/calstore"
	"calplan/internal/dategrid"
	appLog "calplan/internal/log"
	"calplan/internal/model"
	"calplan/internal/tasks"
)

const maxRequestBytes = 64 << 10

var errTaskNotFound = errors.New("task not found")

// sonicSerializer replaces echo's encoding/json serializer.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i interface{}) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return nil
}

func bindJSON(c echo.Context, v any) error {
	return c.Echo().JSONSerializer.Deserialize(c, v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// errorHandler renders every failure as {"error": "..."}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("http request failed", err, "method", c.Request().Method, "path", c.Request().URL.Path, "status", status)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, errorResponse{Error: msg})
	}
	if werr != nil {
		appLog.Error("write error response failed", werr)
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	switch {
	case errors.Is(err, dategrid.ErrDateRange),
		errors.Is(err, calendar.ErrInvalidDay),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, tasks.ErrInvalidTask),
		errors.Is(err, assistant.ErrEmptyTitle),
		errors.Is(err, assistant.ErrInvalidRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, calstore.ErrNotFound), errors.Is(err, errTaskNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, calstore.ErrReadOnly), errors.Is(err, calstore.ErrAccessDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, assistant.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, calendar.ErrFetch):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
