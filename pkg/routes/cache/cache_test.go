package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type fakeCache struct {
	removed int
	err     error
	calls   int
}

func (f *fakeCache) Invalidate(_ context.Context) (int, error) {
	f.calls++
	return f.removed, f.err
}

func testServer(cache Invalidator) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(cache, logger).Register(e.Group("/api/v1/cache"))
	return e
}

func TestClear(t *testing.T) {
	tests := []struct {
		name  string
		cache *fakeCache
		code  int
		body  string
	}{
		{name: "removes cached responses", cache: &fakeCache{removed: 3}, code: http.StatusOK, body: `{"removed":3}`},
		{name: "backend failure", cache: &fakeCache{err: errors.New("connection refused")}, code: http.StatusBadGateway},
		{name: "no cache configured", code: http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inv Invalidator
			if tt.cache != nil {
				inv = tt.cache
			}
			rec := httptest.NewRecorder()
			testServer(inv).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
			if tt.cache != nil {
				assert.Equal(t, 1, tt.cache.calls)
			}
		})
	}
}
