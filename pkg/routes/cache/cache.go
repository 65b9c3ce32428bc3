// Package cache serves the registry response cache admin endpoint.
package cache

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// Invalidator drops every cached registry response and reports how many were removed
type Invalidator interface {
	Invalidate(ctx context.Context) (int, error)
}

// Handler clears the response cache. A nil invalidator means no cache is configured.
type Handler struct {
	cache  Invalidator
	logger ectologger.Logger
}

func NewHandler(cache Invalidator, logger ectologger.Logger) *Handler {
	return &Handler{cache: cache, logger: logger}
}

// Register registers the cache routes
func (h *Handler) Register(g *echo.Group) {
	g.DELETE("", h.Clear)
}

// ClearResponse reports the number of cached responses removed
type ClearResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) Clear(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "cache_handler.Clear")
	defer span.End()

	if h.cache == nil {
		return httperror.NewHTTPError(http.StatusNotImplemented, "response cache is not configured")
	}
	removed, err := h.cache.Invalidate(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to clear the response cache")
		return httperror.NewHTTPError(http.StatusBadGateway, "failed to clear the response cache")
	}
	return c.JSON(http.StatusOK, ClearResponse{Removed: removed})
}
