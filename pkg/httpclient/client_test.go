package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bramble/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Link", `<http://next/page2>; rel="next"`)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(DefaultConfig(), testLogger())
	resp, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Test": "yes"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, []byte(`[]`), resp.Body)
	assert.Equal(t, "http://next/page2", NextLink(resp.Header))
}

func TestClient_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", MaxResponseSize+1)))
	}))
	defer srv.Close()

	c := NewClientWith(srv.Client(), testLogger())
	_, err := c.Get(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "none", values: nil, want: ""},
		{name: "single next", values: []string{`<https://x/e.json?_next=2>; rel="next"`}, want: "https://x/e.json?_next=2"},
		{name: "next after prev", values: []string{`<https://x/1>; rel="prev", <https://x/3>; rel="next"`}, want: "https://x/3"},
		{name: "comma inside url", values: []string{`<https://x/e.json?a=1,2>; rel=next`}, want: "https://x/e.json?a=1,2"},
		{name: "split headers", values: []string{`<https://x/1>; rel="prev"`, `<https://x/4>; rel="next"`}, want: "https://x/4"},
		{name: "no next", values: []string{`<https://x/1>; rel="first"`}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.values {
				h.Add("Link", v)
			}
			assert.Equal(t, tt.want, NextLink(h))
		})
	}
}
