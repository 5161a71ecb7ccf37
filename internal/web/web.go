// Package web exposes the calendar controller, the task list and the
// assistant bridge over a small JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"calplan/internal/assistant"
	"calplan/internal/calendar"
	"calplan/internal/config"
	appLog "calplan/internal/log"
	"calplan/internal/tasks"
)

const (
	settleTimeout   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Deps are the services the API serves. Assistant may be nil when no
// endpoint is configured.
type Deps struct {
	Calendar  *calendar.Controller
	Tasks     *tasks.Store
	Assistant *assistant.Bridge
	Location  *time.Location
}

// Server provides the HTTP API.
type Server struct {
	cfg  *config.Config
	deps Deps
	e    *echo.Echo
}

// NewServer constructs a Server and registers its routes.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler

	s := &Server{cfg: cfg, deps: deps, e: e}

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+cfg.Listen)
		e.Use(s.basicAuth())
	}
	s.registerRoutes()
	return s
}

// Handler returns the echo instance as an http.Handler.
func (s *Server) Handler() http.Handler { return s.e }

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials count as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuth guards every route except /health.
func (s *Server) basicAuth() echo.MiddlewareFunc {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "calplan",
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		Validator: func(u, p string, _ echo.Context) (bool, error) {
			return secureCompare(u, username) && secureCompare(p, password), nil
		},
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}

func (s *Server) registerRoutes() {
	s.e.GET("/health", s.handleHealth)

	api := s.e.Group("/api")
	api.GET("/month", s.handleMonth)
	api.POST("/month/change", s.handleChangeMonth)
	api.POST("/month/today", s.handleToday)
	api.POST("/month/refresh", s.handleRefresh)
	api.POST("/select", s.handleSelect)
	api.GET("/days/:day/events", s.handleDayEvents)

	api.POST("/events", s.handleAddEvent)
	api.PUT("/events/:id", s.handleModifyEvent)
	api.DELETE("/events/:id", s.handleDeleteEvent)

	api.GET("/tasks", s.handleListTasks)
	api.POST("/tasks", s.handleAddTask)
	api.PATCH("/tasks/:id", s.handleUpdateTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)

	api.POST("/assistant", s.handleAssistant)

	for _, r := range s.e.Routes() {
		appLog.Debug("route registered", "method", r.Method, "path", r.Path)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok\n")
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
