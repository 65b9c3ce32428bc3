// Package server assembles the echo API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/bramble/pkg/middleware"
	cacheroutes "github.com/Ramsey-B/bramble/pkg/routes/cache"
	"github.com/Ramsey-B/bramble/pkg/routes/health"
	"github.com/Ramsey-B/bramble/pkg/routes/metrics"
	"github.com/Ramsey-B/bramble/pkg/routes/snapshots"
	workspaceroutes "github.com/Ramsey-B/bramble/pkg/routes/workspace"
	"github.com/Ramsey-B/bramble/pkg/workspace"
)

type Options struct {
	ServiceName string
	Manager     *workspace.Manager
	Health      *health.Checker
	// Cache is the registry response cache cleared by DELETE /api/v1/cache. Nil when caching is off.
	Cache        cacheroutes.Invalidator
	Logger       ectologger.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    string
}

// New builds the echo instance with middleware and every route registered
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(opts.Logger)
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "64M"
	}

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(opts.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(opts.Logger, "/api/v1/health/live", "/api/v1/health/ready", "/metrics"))
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.BodyLimit(bodyLimit))

	if opts.Health != nil {
		opts.Health.RegisterRoutes(e)
	}
	metrics.Register(e)

	api := e.Group("/api/v1")
	workspaceroutes.NewHandler(opts.Manager, opts.Logger).Register(api)
	snapshots.NewHandler(opts.Manager).Register(api.Group("/snapshots"))
	cacheroutes.NewHandler(opts.Cache, opts.Logger).Register(api.Group("/cache"))

	return e
}

// Run serves e on addr until ctx is done, then shuts down within shutdownTimeout
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, logger ectologger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down server")
	return e.Shutdown(shutdownCtx)
}
