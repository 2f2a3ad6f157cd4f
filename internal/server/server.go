package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/natikgadzhi/notion-mirror/internal/queue"
	"github.com/natikgadzhi/notion-mirror/internal/sync"
)

// Config carries webhook verification settings.
type Config struct {
	// Secret enables HMAC verification of webhook deliveries when
	// non-empty.
	Secret string
	// MaxEventAge drops events whose timestamp is further than this
	// from now.
	MaxEventAge time.Duration
}

// Server exposes the webhook ingress and the health check.
type Server struct {
	echo     *echo.Echo
	queue    queue.Queue
	bindings *sync.Bindings
	secret   string
	maxAge   time.Duration
	logger   *slog.Logger

	// now is swapped out in tests exercising the stale-event window.
	now func() time.Time
}

// New wires routes and middleware. The server only enqueues; all
// actual syncing happens on the worker.
func New(q queue.Queue, bindings *sync.Bindings, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	s := &Server{
		echo:     e,
		queue:    q,
		bindings: bindings,
		secret:   cfg.Secret,
		maxAge:   cfg.MaxEventAge,
		logger:   logger,
		now:      time.Now,
	}

	e.POST("/webhook", s.handleWebhook)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return s
}

// Start serves on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the route tree; tests drive it via httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}
