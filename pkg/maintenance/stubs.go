package maintenance

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/factory"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/registry"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// DefaultMaxRounds caps the stub re-query loop
const DefaultMaxRounds = 5

// Fetcher fetches registry records whose field matches any of keys
type Fetcher interface {
	FetchChunked(ctx context.Context, field string, keys []string) ([]models.EntityRecord, error)
}

// Resolver labels stub nodes by re-querying the registry with their file numbers
type Resolver struct {
	fetcher   Fetcher
	factory   *factory.Factory
	maxRounds int
	logger    ectologger.Logger
}

// NewResolver creates a stub resolver. maxRounds <= 0 uses DefaultMaxRounds.
func NewResolver(fetcher Fetcher, f *factory.Factory, maxRounds int, logger ectologger.Logger) *Resolver {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Resolver{fetcher: fetcher, factory: f, maxRounds: maxRounds, logger: logger}
}

// ResolveStubs re-queries every stub of g by file number, graphs the returned records and
// composes them into g, repeating for stubs the new records introduce. Each stub is queried
// at most once. The loop stops when no untried stubs remain, a round returns no records, or
// the round cap is hit. Stubs for which known returns true are skipped; known may be nil.
// The returned ids are the stubs still unlabeled. Only a fetch failure is an error.
func (r *Resolver) ResolveStubs(ctx context.Context, g *graph.Graph, known func(id string) bool) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "maintenance.Resolver.ResolveStubs")
	defer span.End()

	tried := make(map[string]struct{})
	rounds := 0
	for rounds < r.maxRounds {
		var pending []string
		for _, id := range g.Unlabeled() {
			if _, ok := tried[id]; ok {
				continue
			}
			if known != nil && known(id) {
				continue
			}
			tried[id] = struct{}{}
			pending = append(pending, id)
		}
		if len(pending) == 0 {
			break
		}
		rounds++

		recs, err := r.fetcher.FetchChunked(ctx, registry.FieldFileNumber, pending)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("stubs", len(pending)).Error("Failed to resolve stubs")
			return nil, err
		}
		if len(recs) == 0 {
			break
		}
		g.Merge(r.factory.MakeGraphs(recs, models.SourceRegistry))
	}
	metrics.StubRounds.Observe(float64(rounds))

	var unresolved []string
	for _, id := range g.Unlabeled() {
		if known != nil && known(id) {
			continue
		}
		unresolved = append(unresolved, id)
	}
	if len(unresolved) > 0 {
		metrics.UnresolvedStubs.Add(float64(len(unresolved)))
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"unresolved": len(unresolved),
			"rounds":     rounds,
		}).Warn("Stubs left unresolved")
	}
	return unresolved, nil
}
