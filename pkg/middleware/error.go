package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/tasks"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// classify maps an error to its status, public message and metadata.
// Unclassified errors are 500s and keep their message private.
func classify(err error) (int, string, map[string]any) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg, nil
		}
		return he.Code, http.StatusText(he.Code), nil
	case httperror.IsHTTPError(err):
		return httperror.GetStatusCode(err), err.Error(), httperror.ToHTTPError(err).Meta
	case errors.Is(err, tasks.ErrTaskInFlight):
		return http.StatusConflict, err.Error(), nil
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil
	}
}

// Error renders handler errors as ErrorResponse JSON. Server errors are logged with their cause;
// client errors are left to the access log.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		code, message, meta := classify(err)
		if code >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithFields(context.Fields(ctx)).WithError(err).WithField("status", code).Error("Handler error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}
