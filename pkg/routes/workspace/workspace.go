package workspace

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	workspacepkg "github.com/Ramsey-B/bramble/pkg/workspace"
)

var validate = validator.New()

// Handler serves the graph-building endpoints of the request's workspace
type Handler struct {
	manager *workspacepkg.Manager
	logger  ectologger.Logger
}

// NewHandler creates a new workspace handler
func NewHandler(manager *workspacepkg.Manager, logger ectologger.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// Register registers the workspace routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/search", h.Search)
	g.POST("/expand", h.Expand)
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:name", h.GetTask)
	g.DELETE("/tasks/:name", h.CancelTask)

	g.POST("/combine", h.Combine)
	g.POST("/remove", h.Remove)
	g.POST("/tidy", h.Tidy)
	g.PUT("/tidy", h.SetTidy)

	g.GET("/nodes", h.Nodes)
	g.GET("/graph", h.Graph)
	g.GET("/graph/qng", h.SaveQNG)
	g.POST("/graph/qng", h.LoadQNG)
	g.POST("/graph/publish", h.Publish)
	g.GET("/export/entities", h.ExportEntities)

	g.POST("/contracts/search", h.SearchContracts)
	g.GET("/contracts", h.ListContracts)

	g.GET("/workspaces", h.ListWorkspaces)
	g.DELETE("/workspace", h.DropWorkspace)
}

func (h *Handler) workspace(c echo.Context) *workspacepkg.Workspace {
	return h.manager.Get(context.GetWorkspaceID(c.Request().Context()))
}

// wait reports whether the caller asked to run a task inline
func wait(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("wait"))
	return v
}

// SelectionRequest names the nodes an operation applies to
type SelectionRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1,dive,required"`
	Scope string   `json:"scope,omitempty" validate:"omitempty,oneof=ids neighbors component"`
}

func (r SelectionRequest) selection() workspacepkg.Selection {
	return workspacepkg.Selection{IDs: r.IDs, Scope: r.Scope}
}

// ExpandRequest seeds an expansion. No ids expands every node.
type ExpandRequest struct {
	IDs   []string `json:"ids" validate:"omitempty,dive,required"`
	Scope string   `json:"scope,omitempty" validate:"omitempty,oneof=ids neighbors component"`
}

func bindSelection(c echo.Context) (workspacepkg.Selection, error) {
	var req SelectionRequest
	if err := bind(c, &req); err != nil {
		return workspacepkg.Selection{}, err
	}
	return req.selection(), nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Search seeds the graph from name, address and file-number searches.
// It runs as the "search" task unless wait=true.
func (h *Handler) Search(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Search")
	defer span.End()

	var req workspacepkg.SearchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.IsEmpty() {
		return httperror.NewHTTPError(http.StatusBadRequest, "name, address or file_number is required")
	}

	w := h.workspace(c)
	if wait(c) {
		out, err := w.Search(ctx, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}

	info, err := w.StartSearch(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, info)
}

// Expand follows the references of the selected nodes, or of every node, outward.
// It runs as the "expand" task unless wait=true.
func (h *Handler) Expand(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Expand")
	defer span.End()

	var req ExpandRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sel := workspacepkg.Selection{IDs: req.IDs, Scope: req.Scope}

	w := h.workspace(c)
	if wait(c) {
		out, err := w.Expand(ctx, sel)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}

	info, err := w.StartExpand(ctx, sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, info)
}

func (h *Handler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Tasks())
}

func (h *Handler) GetTask(c echo.Context) error {
	status, err := h.workspace(c).Task(c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) CancelTask(c echo.Context) error {
	name := c.Param("name")
	if !h.workspace(c).CancelTask(name) {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "no %s task is running", name)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "canceling"})
}

func (h *Handler) Combine(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Combine")
	defer span.End()

	sel, err := bindSelection(c)
	if err != nil {
		return err
	}
	result, err := h.workspace(c).Combine(ctx, sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// RemoveResponse lists the node ids removed from the graph
type RemoveResponse struct {
	Removed []string `json:"removed"`
}

func (h *Handler) Remove(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Remove")
	defer span.End()

	sel, err := bindSelection(c)
	if err != nil {
		return err
	}
	removed, err := h.workspace(c).Remove(ctx, sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RemoveResponse{Removed: removed})
}

// Tidy runs a full deduplication pass now
func (h *Handler) Tidy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Tidy")
	defer span.End()

	return c.JSON(http.StatusOK, h.workspace(c).TidyNow(ctx))
}

// TidyRequest switches full deduplication on every ingestion on or off
type TidyRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// TidyResponse is the tidy flag and, when it was just switched on, the pass it ran
type TidyResponse struct {
	Enabled bool `json:"enabled"`
	Report  any  `json:"report,omitempty"`
}

func (h *Handler) SetTidy(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.SetTidy")
	defer span.End()

	var req TidyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp := TidyResponse{Enabled: *req.Enabled}
	if report := h.workspace(c).SetTidy(ctx, *req.Enabled); report != nil {
		resp.Report = report
	}
	return c.JSON(http.StatusOK, resp)
}

// Nodes returns label to id choices for building selections
func (h *Handler) Nodes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Nodes())
}

func (h *Handler) Graph(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Graph())
}

func (h *Handler) SaveQNG(c echo.Context) error {
	w := h.workspace(c)
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+w.ID()+`.qng"`)
	c.Response().WriteHeader(http.StatusOK)
	return w.SaveQNG(c.Response())
}

// LoadQNG composes a QNG document from the request body into the graph
func (h *Handler) LoadQNG(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.LoadQNG")
	defer span.End()

	w := h.workspace(c)
	if err := w.LoadQNG(ctx, c.Request().Body); err != nil {
		return err
	}
	g := w.Graph()
	return c.JSON(http.StatusOK, map[string]int{"nodes": g.Len(), "edges": g.EdgeCount()})
}

func (h *Handler) Publish(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.Publish")
	defer span.End()

	result, err := h.workspace(c).Publish(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ExportEntities writes the business-data CSV of the record history
func (h *Handler) ExportEntities(c echo.Context) error {
	w := h.workspace(c)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+w.ID()+`-entities.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return w.ExportBusinessData(c.Response())
}

// SearchContracts searches contracts for the selected nodes, or every company when no ids are given.
// It runs as the "contract-search" task unless wait=true.
func (h *Handler) SearchContracts(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "workspace_handler.SearchContracts")
	defer span.End()

	var sel workspacepkg.Selection
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&sel); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if err := validate.Struct(sel); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	w := h.workspace(c)
	if wait(c) {
		out, err := w.SearchContracts(ctx, sel)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}

	info, err := w.StartContractSearch(ctx, sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, info)
}

func (h *Handler) ListContracts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Contracts())
}

func (h *Handler) ListWorkspaces(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.IDs())
}

// DropWorkspace closes the request's workspace and discards its graph
func (h *Handler) DropWorkspace(c echo.Context) error {
	ctx := c.Request().Context()
	id := context.GetWorkspaceID(ctx)
	ok, err := h.manager.Drop(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "workspace %s is not open", id)
	}
	h.logger.WithContext(ctx).WithField("workspace_id", id).Info("Dropped workspace")
	return c.NoContent(http.StatusNoContent)
}
