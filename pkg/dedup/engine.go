// Package dedup merges graph nodes that likely name the same person, company or address.
package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalizers"
	"github.com/Ramsey-B/bramble/pkg/parsing"
)

// Parse failure kinds
const (
	KindName    = "name"
	KindAddress = "address"
)

// Config holds deduplication configuration
type Config struct {
	// IgnoreMiddleInitial groups person names on given name, surname and generational suffix only
	IgnoreMiddleInitial bool
	CanonicalSource     string
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{IgnoreMiddleInitial: true, CanonicalSource: models.SourceRegistry}
}

// ParseFailure records a node whose label could not be parsed. The node is left out of grouping.
type ParseFailure struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Report summarizes one deduplication run
type Report struct {
	GroupsMerged   int            `json:"groups_merged"`
	NodesFolded    int            `json:"nodes_folded"`
	AmbiguousSkips int            `json:"ambiguous_skips"`
	ParseFailures  []ParseFailure `json:"parse_failures,omitempty"`
}

// Engine groups nodes by parsed label components and merges each group
type Engine struct {
	names     parsing.NameParser
	addresses parsing.AddressParser
	cfg       Config
	logger    ectologger.Logger
}

// NewEngine creates a deduplication engine. Nil parsers default to the rule-based taggers.
func NewEngine(names parsing.NameParser, addresses parsing.AddressParser, cfg Config, logger ectologger.Logger) *Engine {
	if names == nil {
		names = parsing.RuleNameParser{}
	}
	if addresses == nil {
		addresses = parsing.RuleAddressParser{}
	}
	if cfg.CanonicalSource == "" {
		cfg.CanonicalSource = models.SourceRegistry
	}
	return &Engine{names: names, addresses: addresses, cfg: cfg, logger: logger}
}

type groupKind int

const (
	groupPerson groupKind = iota
	groupCompany
	groupAddress
)

// groups keeps candidate groups in first-seen order
type groups struct {
	order []string
	kind  map[string]groupKind
	ids   map[string][]string
}

func newGroups() *groups {
	return &groups{kind: make(map[string]groupKind), ids: make(map[string][]string)}
}

func (gs *groups) add(kind groupKind, key, id string) {
	if key == "" {
		return
	}
	full := string(rune('0'+kind)) + "|" + key
	if _, ok := gs.ids[full]; !ok {
		gs.order = append(gs.order, full)
		gs.kind[full] = kind
	}
	gs.ids[full] = append(gs.ids[full], id)
}

// CanonicalSource is the data source preferred for merge survivors
func (e *Engine) CanonicalSource() string {
	return e.cfg.CanonicalSource
}

// TidyUp merges likely duplicate people, companies and addresses
func (e *Engine) TidyUp(ctx context.Context, g *graph.Graph) Report {
	return e.run(ctx, g, "tidy", true)
}

// CompanyNamePass merges only nodes that name the same company
func (e *Engine) CompanyNamePass(ctx context.Context, g *graph.Graph) Report {
	return e.run(ctx, g, "company_name", false)
}

func (e *Engine) run(ctx context.Context, g *graph.Graph, pass string, full bool) Report {
	start := time.Now()
	defer func() {
		metrics.TidyDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
	}()

	var report Report
	gs := newGroups()
	for _, n := range g.Nodes() {
		if n.IsStub() {
			continue
		}
		switch {
		case n.Type == models.NodeTypeAddress:
			if !full {
				continue
			}
			key, err := e.addressKey(n.Label)
			if err != nil {
				report.ParseFailures = append(report.ParseFailures, e.failure(ctx, n, KindAddress, err))
				continue
			}
			gs.add(groupAddress, key, n.ID)
		case isCompanyType(n.Type):
			gs.add(groupCompany, normalizers.NormalizeCompany(normalizers.NormalizeNameLabel(n.Label)), n.ID)
		case n.Type == models.NodeTypePerson:
			label := normalizers.NormalizeNameLabel(n.Label)
			parts, err := e.names.ParseName(label)
			if err != nil {
				report.ParseFailures = append(report.ParseFailures, e.failure(ctx, n, KindName, err))
				continue
			}
			if parts.IsCorporation() {
				gs.add(groupCompany, normalizers.NormalizeCompany(label), n.ID)
				continue
			}
			if full {
				gs.add(groupPerson, e.personKey(parts), n.ID)
			}
		}
	}

	for _, key := range gs.order {
		ids := gs.ids[key]
		if len(ids) < 2 {
			continue
		}
		if gs.kind[key] == groupCompany && len(registeredCompanies(g, ids)) > 1 {
			report.AmbiguousSkips++
			e.logger.WithContext(ctx).WithField("ids", ids).Debug("Skipping company group with more than one registered company")
			continue
		}
		if _, merged := g.Combine(ids, e.cfg.CanonicalSource); merged {
			report.GroupsMerged++
			report.NodesFolded += len(ids) - 1
			metrics.MergesTotal.WithLabelValues(pass).Inc()
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"pass":           pass,
		"groups_merged":  report.GroupsMerged,
		"nodes_folded":   report.NodesFolded,
		"parse_failures": len(report.ParseFailures),
		"ambiguous":      report.AmbiguousSkips,
	}).Info("Deduplication complete")
	return report
}

func (e *Engine) failure(ctx context.Context, n graph.Node, kind string, err error) ParseFailure {
	metrics.ParseFailuresTotal.WithLabelValues(kind).Inc()
	e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"node_id": n.ID, "label": n.Label}).Warn("Label failed to parse, excluding from grouping")
	return ParseFailure{NodeID: n.ID, Label: n.Label, Kind: kind, Error: err.Error()}
}

func (e *Engine) addressKey(label string) (string, error) {
	parts, err := e.addresses.ParseAddress(normalizers.NormalizeStreet(label))
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		parts.Get(parsing.AddressNumber),
		parts.Get(parsing.StreetName),
		parts.Get(parsing.OccupancyIdentifier),
	}, "|"), nil
}

func (e *Engine) personKey(parts parsing.Components) string {
	given := parts.Get(parsing.GivenName)
	if given == "" {
		given = parts.Get(parsing.FirstInitial)
	}
	fields := []string{given, parts.Get(parsing.Surname), parts.Get(parsing.SuffixGenerational)}
	if !e.cfg.IgnoreMiddleInitial {
		middle := parts.Get(parsing.MiddleName)
		if middle == "" {
			middle = parts.Get(parsing.MiddleInitial)
		}
		fields = append(fields, middle)
	}
	return strings.Join(fields, "|")
}

func isCompanyType(t string) bool {
	return t == models.NodeTypeCompany || t == models.NodeTypeInactiveCompany
}

// registeredCompanies returns the group's company nodes identified by a file number
func registeredCompanies(g *graph.Graph, ids []string) []string {
	return ectolinq.Filter(ids, func(id string) bool {
		n, ok := g.Node(id)
		return ok && isCompanyType(n.Type) && !isDerivedID(id)
	})
}

// isDerivedID reports ids minted from a record rather than a file number (N, A and C prefixed numbers)
func isDerivedID(id string) bool {
	for _, prefix := range []string{models.PrefixName, models.PrefixAddress, models.PrefixOwner} {
		rest, ok := strings.CutPrefix(id, prefix)
		if ok && rest != "" && strings.TrimLeft(rest, "0123456789") == "" {
			return true
		}
	}
	return false
}
