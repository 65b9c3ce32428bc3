// Package health serves liveness, readiness and dependency health endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// PingFunc checks one backing service
type PingFunc func(ctx context.Context) error

// Check is the outcome of one PingFunc
type Check struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the body of the health endpoint
type Report struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	Checks     []Check   `json:"checks"`
	ReportedAt time.Time `json:"reported_at"`
}

// Checker pings the configured backing services
type Checker struct {
	mu      sync.RWMutex
	pings   map[string]PingFunc
	version string
	started time.Time
	ready   atomic.Bool
	timeout time.Duration
}

// NewChecker creates a checker with no services. It reports not ready until SetReady.
func NewChecker(version string) *Checker {
	return &Checker{
		pings:   make(map[string]PingFunc),
		version: version,
		started: time.Now(),
		timeout: 2 * time.Second,
	}
}

// AddCheck registers ping under name, replacing any earlier one
func (c *Checker) AddCheck(name string, ping PingFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings[name] = ping
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes mounts the health endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/health")
	g.GET("", c.health)
	g.GET("/live", c.live)
	g.GET("/ready", c.readiness)
}

// Run pings every service concurrently, each under its own timeout, and returns the checks by name
func (c *Checker) Run(ctx context.Context) []Check {
	c.mu.RLock()
	names := make([]string, 0, len(c.pings))
	for name := range c.pings {
		names = append(names, name)
	}
	pings := make([]PingFunc, len(names))
	sort.Strings(names)
	for i, name := range names {
		pings[i] = c.pings[name]
	}
	c.mu.RUnlock()

	checks := make([]Check, len(names))
	var eg errgroup.Group
	for i, name := range names {
		eg.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			start := time.Now()
			err := pings[i](pingCtx)
			checks[i] = Check{Name: name, Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				checks[i].Status = StatusUnhealthy
				checks[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return checks
}

func healthy(checks []Check) bool {
	for _, check := range checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}

func (c *Checker) health(ctx echo.Context) error {
	report := Report{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     c.Run(ctx.Request().Context()),
		ReportedAt: time.Now().UTC(),
	}
	if !healthy(report.Checks) {
		report.Status = StatusUnhealthy
		return ctx.JSON(http.StatusServiceUnavailable, report)
	}
	return ctx.JSON(http.StatusOK, report)
}

func (c *Checker) live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// readiness requires startup to have finished and every service to answer
func (c *Checker) readiness(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	if checks := c.Run(ctx.Request().Context()); !healthy(checks) {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": checks})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
