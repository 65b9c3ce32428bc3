// Package expansion follows a graph's node references back to the registry and returns the records around them.
package expansion

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/records"
	"github.com/Ramsey-B/bramble/pkg/registry"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of keys sent in one filter query
const DefaultChunkSize = 100

// Excluder decides whether a node label is excluded from the graph
type Excluder interface {
	Excluded(label string) bool
}

// Config holds expansion configuration
type Config struct {
	FileNumberPrefixes []string
	ChunkSize          int
	Concurrency        int
}

// DefaultConfig returns the default expansion configuration
func DefaultConfig() Config {
	return Config{
		FileNumberPrefixes: []string{"LLC", "COR"},
		ChunkSize:          DefaultChunkSize,
		Concurrency:        4,
	}
}

// Engine expands graph nodes into the registry records that reference them
type Engine struct {
	source   registry.Source
	excluder Excluder
	cfg      Config
	logger   ectologger.Logger
}

// NewEngine creates an expansion engine. excluder may be nil.
func NewEngine(source registry.Source, excluder Excluder, cfg Config, logger ectologger.Logger) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.FileNumberPrefixes) == 0 {
		cfg.FileNumberPrefixes = DefaultConfig().FileNumberPrefixes
	}
	return &Engine{source: source, excluder: excluder, cfg: cfg, logger: logger}
}

// Keys are the classified query keys of an expansion
type Keys struct {
	FileNumbers []string
	NameIDs     []string
	AddressIDs  []string
}

// Classify resolves each seed to its alias set, drops excluded seeds and sorts the ids into query keys.
// No seeds means every node of g.
func (e *Engine) Classify(g *graph.Graph, seeds []string) Keys {
	if len(seeds) == 0 {
		seeds = g.NodeIDs()
	}

	var keys Keys
	seen := make(map[string]struct{})
	for _, seed := range seeds {
		if e.excluder != nil {
			if holder, ok := g.Resolve(seed); ok {
				if n, _ := g.Node(holder); e.excluder.Excluded(n.Label) {
					continue
				}
			}
		}
		for _, id := range g.AliasIDs([]string{seed}) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			switch {
			case e.isFileNumber(id):
				keys.FileNumbers = append(keys.FileNumbers, id)
			case isPrefixedNumber(id, models.PrefixAddress):
				keys.AddressIDs = append(keys.AddressIDs, id[len(models.PrefixAddress):])
			case isPrefixedNumber(id, models.PrefixName):
				keys.NameIDs = append(keys.NameIDs, id[len(models.PrefixName):])
			}
		}
	}
	return keys
}

func (e *Engine) isFileNumber(id string) bool {
	for _, prefix := range e.cfg.FileNumberPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func isPrefixedNumber(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Expand fetches the records around seeds in two hops: names and addresses first, then every
// file number they or the seeds reference. Any remote failure fails the whole expansion.
func (e *Engine) Expand(ctx context.Context, g *graph.Graph, seeds []string) ([]models.EntityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "expansion.Engine.Expand")
	defer span.End()

	start := time.Now()
	keys := e.Classify(g, seeds)
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"file_numbers": len(keys.FileNumbers),
		"name_ids":     len(keys.NameIDs),
		"address_ids":  len(keys.AddressIDs),
	})
	log.Info("Expanding graph")

	out, err := e.ExpandKeys(ctx, keys)
	if err != nil {
		metrics.ExpansionsTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("Expansion failed")
		return nil, err
	}

	metrics.ExpansionsTotal.WithLabelValues("ok").Inc()
	metrics.ExpansionRecords.Observe(float64(len(out)))
	log.WithFields(map[string]any{"records": len(out), "duration": time.Since(start).String()}).Info("Expansion complete")
	return out, nil
}

// ExpandKeys runs the two-hop fetch for already-classified keys
func (e *Engine) ExpandKeys(ctx context.Context, keys Keys) ([]models.EntityRecord, error) {
	var byName, byAddress []models.EntityRecord
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		byName, err = e.FetchChunked(egCtx, registry.FieldNameID, keys.NameIDs)
		return err
	})
	eg.Go(func() error {
		var err error
		byAddress, err = e.FetchChunked(egCtx, registry.FieldAddressID, keys.AddressIDs)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	fileNumbers := distinct(keys.FileNumbers, records.FileNumbers(byName), records.FileNumbers(byAddress))
	byFileNumber, err := e.FetchChunked(ctx, registry.FieldFileNumber, fileNumbers)
	if err != nil {
		return nil, err
	}
	return records.Union(byName, byAddress, byFileNumber), nil
}

// FetchChunked queries field in chunks of the configured size, concurrently, and unions the
// chunk results in chunk order. An empty key list issues no query.
func (e *Engine) FetchChunked(ctx context.Context, field string, keys []string) ([]models.EntityRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	chunks := chunk(keys, e.cfg.ChunkSize)
	results := make([][]models.EntityRecord, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.Concurrency)
	for i, c := range chunks {
		eg.Go(func() error {
			recs, err := e.source.FetchEntities(egCtx, field, c)
			if err != nil {
				e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"field": field, "chunk": i}).Warn("Chunk fetch failed")
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return records.Union(results...), nil
}

func chunk(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end])
	}
	return out
}

func distinct(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
