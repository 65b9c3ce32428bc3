package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/labstack/echo/v4"
)

// Logger writes one access log entry per request. Errors are rendered through c.Error first so the
// logged status is final. Requests on quiet paths log at debug level unless they fail.
func Logger(logger ectologger.Logger, quiet ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			fields := context.Fields(req.Context())
			fields["method"] = req.Method
			fields["uri"] = req.RequestURI
			fields["status"] = res.Status
			fields["remote_ip"] = c.RealIP()
			fields["user_agent"] = req.UserAgent()
			fields["duration_ms"] = time.Since(start).Milliseconds()
			fields["response_size"] = res.Size

			entry := logger.WithContext(req.Context()).WithFields(fields)
			switch {
			case res.Status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case res.Status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			case slices.Contains(quiet, c.Path()):
				entry.Debug("Request")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}
