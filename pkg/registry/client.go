// Package registry queries the remote business registry (a Datasette instance) for entity records.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/records"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"golang.org/x/sync/singleflight"
)

// Filter fields accepted by FetchEntities
const (
	FieldNameID     = "name_id"
	FieldAddressID  = "address_id"
	FieldFileNumber = "file_number"
)

// DefaultMaxPages bounds pagination against a server that never stops returning next links
const DefaultMaxPages = 1000

// Source is the remote entity source the expansion engine and workspaces read from
type Source interface {
	FetchEntities(ctx context.Context, field string, values []string) ([]models.EntityRecord, error)
}

// Searcher adds the free-text searches used to seed a workspace
type Searcher interface {
	Source
	SearchNameIDs(ctx context.Context, pattern string) ([]string, error)
	SearchAddressIDs(ctx context.Context, pattern string) ([]string, error)
	SearchFileNumbers(ctx context.Context, pattern string) ([]models.EntityRecord, error)
}

// Cache stores raw response pages keyed by URL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config holds registry client configuration
type Config struct {
	Endpoint string
	Database string
	CacheTTL time.Duration
	// MaxPages fails a query that still has a next link after this many pages. Zero means DefaultMaxPages.
	MaxPages int
}

// Client is a Datasette registry client
type Client struct {
	http     *httpclient.Client
	cfg      Config
	cache    Cache
	inflight singleflight.Group
	logger   ectologger.Logger
}

// NewClient creates a registry client. cache may be nil.
func NewClient(cfg Config, client *httpclient.Client, cache Cache, logger ectologger.Logger) *Client {
	if cfg.Database == "" {
		cfg.Database = "companies"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{http: client, cfg: cfg, cache: cache, logger: logger}
}

func (c *Client) tableURL(table string, query string) string {
	return fmt.Sprintf("%s/%s/%s.json?%s", c.cfg.Endpoint, c.cfg.Database, table, query)
}

// FetchEntities returns the entity records whose field is one of values.
// An empty value list issues no request.
func (c *Client) FetchEntities(ctx context.Context, field string, values []string) ([]models.EntityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.FetchEntities")
	defer span.End()

	if len(values) == 0 {
		return nil, nil
	}
	list, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	query := "_labels=on&_shape=array&" + url.QueryEscape(field+"__in") + "=" + url.QueryEscape(string(list))
	return c.fetchRecords(ctx, field, c.tableURL("entities", query))
}

// SearchFileNumbers returns the entity records whose file number contains pattern
func (c *Client) SearchFileNumbers(ctx context.Context, pattern string) ([]models.EntityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.SearchFileNumbers")
	defer span.End()

	if pattern == "" {
		return nil, nil
	}
	query := "_labels=on&_shape=array&file_number__like=" + url.QueryEscape("%"+pattern+"%")
	return c.fetchRecords(ctx, "file_number_like", c.tableURL("entities", query))
}

// SearchNameIDs returns the ids of names matching the LIKE pattern
func (c *Client) SearchNameIDs(ctx context.Context, pattern string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.SearchNameIDs")
	defer span.End()

	if pattern == "" {
		return nil, nil
	}
	return c.fetchIDs(ctx, "name_like", c.tableURL("names", "_shape=array&name__like="+url.QueryEscape(pattern)))
}

// SearchAddressIDs returns the ids of addresses whose street matches the LIKE pattern
func (c *Client) SearchAddressIDs(ctx context.Context, pattern string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.SearchAddressIDs")
	defer span.End()

	if pattern == "" {
		return nil, nil
	}
	return c.fetchIDs(ctx, "street_like", c.tableURL("addresses", "_shape=array&street__like="+url.QueryEscape(pattern)))
}

func (c *Client) fetchRecords(ctx context.Context, kind, u string) ([]models.EntityRecord, error) {
	rows, err := c.fetchAll(ctx, kind, u)
	if err != nil {
		return nil, err
	}
	out, errs := records.Normalize(rows)
	for _, err := range errs {
		metrics.MalformedRecordsTotal.Inc()
		c.logger.WithContext(ctx).WithError(err).Warn("Skipping malformed registry record")
	}
	return out, nil
}

func (c *Client) fetchIDs(ctx context.Context, kind, u string) ([]string, error) {
	rows, err := c.fetchAll(ctx, kind, u)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		var r struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(row, &r); err != nil || r.ID == "" {
			c.logger.WithContext(ctx).WithField("index", i).Warn("Skipping lookup row without an id")
			continue
		}
		ids = append(ids, r.ID.String())
	}
	return ids, nil
}

// fetchAll follows rel="next" links and concatenates the pages in arrival order
func (c *Client) fetchAll(ctx context.Context, kind, u string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	next := u
	for page := 0; next != ""; page++ {
		if page == c.cfg.MaxPages {
			metrics.RegistryQueriesTotal.WithLabelValues(kind, "error").Inc()
			c.logger.WithContext(ctx).WithFields(map[string]any{"kind": kind, "pages": page, "next": next}).Warn("Registry pagination limit exceeded")
			return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "registry %s query exceeded %d pages", kind, page)
		}
		body, link, err := c.fetchPage(ctx, kind, next)
		if err != nil {
			metrics.RegistryQueriesTotal.WithLabelValues(kind, "error").Inc()
			return nil, err
		}
		var pageRows []json.RawMessage
		if err := json.Unmarshal(body, &pageRows); err != nil {
			metrics.RegistryQueriesTotal.WithLabelValues(kind, "error").Inc()
			return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "registry returned a non-array body for %s: %v", kind, err)
		}
		rows = append(rows, pageRows...)
		next = link
	}
	metrics.RegistryQueriesTotal.WithLabelValues(kind, "ok").Inc()
	c.logger.WithContext(ctx).WithFields(map[string]any{"kind": kind, "rows": len(rows)}).Debug("Registry query complete")
	return rows, nil
}

type cachedPage struct {
	Body []byte `json:"body"`
	Next string `json:"next,omitempty"`
}

func (c *Client) fetchPage(ctx context.Context, kind, u string) ([]byte, string, error) {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, u); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Registry cache read failed")
		} else if ok {
			var page cachedPage
			if err := json.Unmarshal(data, &page); err == nil {
				metrics.RegistryCacheTotal.WithLabelValues("hit").Inc()
				return page.Body, page.Next, nil
			}
		}
		metrics.RegistryCacheTotal.WithLabelValues("miss").Inc()
	}

	v, err, shared := c.inflight.Do(u, func() (any, error) {
		return c.fetchRemote(ctx, kind, u)
	})
	if err != nil {
		return nil, "", err
	}
	if shared {
		c.logger.WithContext(ctx).WithField("url", u).Debug("Shared in-flight registry request")
	}
	page := v.(cachedPage)
	return page.Body, page.Next, nil
}

// fetchRemote requests one page and caches it. Concurrent callers of the same URL share one call.
func (c *Client) fetchRemote(ctx context.Context, kind, u string) (cachedPage, error) {
	resp, err := c.http.Get(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return cachedPage{}, httperror.WrapError(http.StatusBadGateway, fmt.Errorf("registry %s query failed: %w", kind, err))
	}
	if !resp.IsSuccess() {
		return cachedPage{}, httperror.NewHTTPErrorf(resp.StatusCode, "registry %s query returned status %d", kind, resp.StatusCode)
	}
	page := cachedPage{Body: resp.Body, Next: httpclient.NextLink(resp.Header)}

	if c.cache != nil {
		data, _ := json.Marshal(page)
		if err := c.cache.Set(ctx, u, data, c.cfg.CacheTTL); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Registry cache write failed")
		}
	}
	return page, nil
}
