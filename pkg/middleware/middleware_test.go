package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/tasks"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer() *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context(), Logger(logger))
	return e
}

func TestContext(t *testing.T) {
	e := testServer()
	e.GET("/ws", func(c echo.Context) error {
		ctx := c.Request().Context()
		return c.JSON(http.StatusOK, map[string]string{
			"request_id":   context.GetRequestID(ctx),
			"workspace_id": context.GetWorkspaceID(ctx),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(HeaderWorkspaceID, "case-7")
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "case-7", body["workspace_id"])
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, context.DefaultWorkspaceID, body["workspace_id"])
	assert.NotEmpty(t, body["request_id"])

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(HeaderWorkspaceID, "../etc")
	req.Header.Set(echo.HeaderXRequestID, "req-3")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "req-3", errBody.RequestID)
	assert.Contains(t, errBody.Message, HeaderWorkspaceID)
}

func TestError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"http error", httperror.NewHTTPError(http.StatusNotFound, "snapshot not found"), http.StatusNotFound},
		{"task in flight", fmt.Errorf("%w: search", tasks.ErrTaskInFlight), http.StatusConflict},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "bad body"), http.StatusBadRequest},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"echo error without message", echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testServer()
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-2")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "req-2", body.RequestID)
			assert.NotEmpty(t, body.Message)
		})
	}
}
