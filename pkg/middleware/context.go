package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderWorkspaceID selects the workspace a request operates on
const HeaderWorkspaceID = "X-Workspace-ID"

// Context stamps the request id, route and workspace onto the request context.
// A malformed workspace header is rejected before the handler runs.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			ctx := context.SetRoute(context.SetRequestID(req.Context(), requestID), route)

			workspaceID := req.Header.Get(HeaderWorkspaceID)
			if workspaceID != "" && !context.ValidWorkspaceID(workspaceID) {
				c.SetRequest(req.WithContext(ctx))
				return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s header %q", HeaderWorkspaceID, workspaceID)
			}

			c.SetRequest(req.WithContext(context.SetWorkspaceID(ctx, workspaceID)))
			return next(c)
		}
	}
}
