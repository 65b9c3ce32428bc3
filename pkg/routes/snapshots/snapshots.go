package snapshots

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/workspace"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Handler serves stored graph snapshots of the request's workspace
type Handler struct {
	manager *workspace.Manager
}

func NewHandler(manager *workspace.Manager) *Handler {
	return &Handler{manager: manager}
}

// Register registers the snapshot routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/restore", h.Restore)
}

// CreateRequest names a snapshot. Saving under an existing name replaces it.
type CreateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (h *Handler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "snapshot_handler.Create")
	defer span.End()

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	summary, err := h.manager.Get(context.GetWorkspaceID(ctx)).Snapshot(ctx, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, summary)
}

func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "snapshot_handler.List")
	defer span.End()

	items, err := h.manager.Get(context.GetWorkspaceID(ctx)).Snapshots(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "snapshot_handler.Delete")
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid snapshot id")
	}
	if err := h.manager.Get(context.GetWorkspaceID(ctx)).DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Restore replaces the workspace graph with a stored snapshot
func (h *Handler) Restore(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "snapshot_handler.Restore")
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid snapshot id")
	}

	w := h.manager.Get(context.GetWorkspaceID(ctx))
	if err := w.Restore(ctx, id); err != nil {
		return err
	}
	g := w.Graph()
	return c.JSON(http.StatusOK, map[string]any{"snapshot_id": id, "nodes": g.Len(), "edges": g.EdgeCount()})
}
