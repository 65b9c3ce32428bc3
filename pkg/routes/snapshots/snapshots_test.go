package snapshots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/middleware"
	"github.com/Ramsey-B/bramble/pkg/workspace"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	manager := workspace.NewManager(workspace.Dependencies{Logger: logger})
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(manager).Register(e.Group("/api/v1/snapshots"))
	return e
}

func TestSnapshotRoutes(t *testing.T) {
	e := testServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"missing name", http.MethodPost, "/api/v1/snapshots", `{}`, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/v1/snapshots", `{`, http.StatusBadRequest},
		{"storage not configured", http.MethodPost, "/api/v1/snapshots", `{"name":"before tidy"}`, http.StatusNotImplemented},
		{"list not configured", http.MethodGet, "/api/v1/snapshots", ``, http.StatusNotImplemented},
		{"bad id", http.MethodPost, "/api/v1/snapshots/not-a-uuid/restore", ``, http.StatusBadRequest},
		{"restore not configured", http.MethodPost, "/api/v1/snapshots/5f0c6c1e-2f55-4a8e-9d7b-3d7c2f1b9a10/restore", ``, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}
