// Package contracts searches an open-data contracts resource for the labels of graph nodes.
package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/expressions"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Extracted field names
const (
	FieldContractNumber = "contract_number"
	FieldRevisionNumber = "revision_number"
	FieldVendor         = "vendor"
	FieldDescription    = "description"
	FieldAmount         = "amount"
)

// DefaultFields maps extracted field names to JMESPath expressions over a City of Chicago contracts row
var DefaultFields = map[string]string{
	FieldContractNumber: "purchase_order_contract_number",
	FieldRevisionNumber: "revision_number",
	FieldVendor:         "vendor_name",
	FieldDescription:    "purchase_order_description",
	FieldAmount:         "award_amount",
}

// Config holds contracts source configuration
type Config struct {
	BaseURL      string
	Dataset      string
	AppToken     string
	Limit        int
	ResultPrefix string
	Concurrency  int
	Fields       map[string]string
}

// DefaultConfig returns the City of Chicago contracts dataset configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://data.cityofchicago.org",
		Dataset:      "rsxa-ify5",
		Limit:        1000,
		ResultPrefix: "CHI",
		Concurrency:  4,
		Fields:       DefaultFields,
	}
}

// Result is one contract row joined back to the node whose label matched it
type Result struct {
	ResultID       string         `json:"result_id"`
	NodeID         string         `json:"node_id"`
	Keyword        string         `json:"keyword"`
	ContractNumber string         `json:"contract_number"`
	RevisionNumber string         `json:"revision_number"`
	Fields         map[string]any `json:"fields"`
}

// Label is the display label of the contract node: the vendor, or the contract number
func (r Result) Label() string {
	if v, ok := r.Fields[FieldVendor].(string); ok && v != "" {
		return v
	}
	return r.ContractNumber
}

// Row projects the result for the contracts factory set
func (r Result) Row() map[string]any {
	row := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		row[k] = v
	}
	row["result_id"] = r.ResultID
	row["node_id"] = r.NodeID
	row["keyword"] = r.Keyword
	row["label"] = r.Label()
	row[FieldContractNumber] = r.ContractNumber
	row[FieldRevisionNumber] = r.RevisionNumber
	return row
}

// Client is a Socrata SODA contracts client
type Client struct {
	http   *httpclient.Client
	fields *expressions.Mapping
	cfg    Config
	logger ectologger.Logger
}

// NewClient creates a contracts client. Every field expression must compile.
func NewClient(cfg Config, client *httpclient.Client, logger ectologger.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ResultPrefix == "" {
		cfg.ResultPrefix = def.ResultPrefix
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultFields
	}
	fields, err := expressions.CompileMapping(cfg.Fields)
	if err != nil {
		return nil, fmt.Errorf("contracts %w", err)
	}
	for _, required := range []string{FieldContractNumber, FieldRevisionNumber} {
		if !fields.Has(required) {
			return nil, fmt.Errorf("contracts field %s is required", required)
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{http: client, fields: fields, cfg: cfg, logger: logger}, nil
}

// ResultID synthesizes the result id of a contract revision
func (c *Client) ResultID(contractNumber, revisionNumber string) string {
	return fmt.Sprintf("%s-%s-%s", c.cfg.ResultPrefix, contractNumber, revisionNumber)
}

func (c *Client) searchURL(keyword string) string {
	q := url.Values{}
	q.Set("$q", keyword)
	q.Set("$limit", strconv.Itoa(c.cfg.Limit))
	return fmt.Sprintf("%s/resource/%s.json?%s", c.cfg.BaseURL, c.cfg.Dataset, q.Encode())
}

// Search runs one keyword search and joins the rows to nodeID. Rows without a contract number are skipped.
func (c *Client) Search(ctx context.Context, keyword, nodeID string) ([]Result, error) {
	ctx, span := tracing.StartSpan(ctx, "contracts.Client.Search")
	defer span.End()

	headers := map[string]string{"Accept": "application/json"}
	if c.cfg.AppToken != "" {
		headers["X-App-Token"] = c.cfg.AppToken
	}
	resp, err := c.http.Get(ctx, c.searchURL(keyword), headers)
	if err != nil {
		return nil, httperror.WrapError(http.StatusBadGateway, fmt.Errorf("contracts search failed: %w", err))
	}
	if !resp.IsSuccess() {
		return nil, httperror.NewHTTPErrorf(resp.StatusCode, "contracts search returned status %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "contracts search returned a non-array body: %v", err)
	}

	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		r, err := c.extract(row)
		if err != nil {
			return nil, err
		}
		if r.ContractNumber == "" {
			continue
		}
		r.NodeID = nodeID
		r.Keyword = keyword
		r.ResultID = c.ResultID(r.ContractNumber, r.RevisionNumber)
		out = append(out, r)
	}
	c.logger.WithContext(ctx).WithFields(map[string]any{"keyword": keyword, "rows": len(rows), "results": len(out)}).Debug("Contracts search complete")
	return out, nil
}

func (c *Client) extract(row map[string]any) (Result, error) {
	values, err := c.fields.Apply(row)
	if err != nil {
		return Result{}, err
	}
	r := Result{Fields: make(map[string]any, len(values))}
	for name, v := range values {
		switch name {
		case FieldContractNumber:
			r.ContractNumber = v
		case FieldRevisionNumber:
			r.RevisionNumber = v
		default:
			r.Fields[name] = v
		}
	}
	return r, nil
}

// SearchNodes searches the label of every labeled node, concurrently, and returns the results
// deduplicated by result id in node order. Any failed search fails the whole call.
func (c *Client) SearchNodes(ctx context.Context, nodes []graph.Node) ([]Result, error) {
	ctx, span := tracing.StartSpan(ctx, "contracts.Client.SearchNodes")
	defer span.End()

	results := make([][]Result, len(nodes))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.cfg.Concurrency)
	for i, n := range nodes {
		if n.Label == "" {
			continue
		}
		eg.Go(func() error {
			rs, err := c.Search(egCtx, n.Label, n.ID)
			if err != nil {
				c.logger.WithContext(ctx).WithError(err).WithField("node_id", n.ID).Warn("Contracts search failed")
				return err
			}
			results[i] = rs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []Result
	for _, rs := range results {
		all = append(all, rs...)
	}
	return Dedupe(all), nil
}

// Dedupe keeps the first result of each result id
func Dedupe(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.ResultID]; ok {
			continue
		}
		seen[r.ResultID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Rows projects results for the contracts factory set
func Rows(results []Result) []map[string]any {
	rows := make([]map[string]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Row())
	}
	return rows
}
