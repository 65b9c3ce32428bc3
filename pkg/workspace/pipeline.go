package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/bramble/pkg/dedup"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/maintenance"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/records"
	"github.com/Ramsey-B/bramble/pkg/registry"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// SearchRequest seeds a workspace. Empty fields are not searched.
type SearchRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	FileNumber string `json:"file_number"`
}

// IsEmpty reports whether the request searches nothing
func (r SearchRequest) IsEmpty() bool {
	return r.Name == "" && r.Address == "" && r.FileNumber == ""
}

// Outcome reports what one ingestion did to the graph.
// NoResults means the fetch succeeded and returned nothing; the graph is unchanged.
type Outcome struct {
	NoResults  bool                     `json:"no_results"`
	Records    int                      `json:"records"`
	NewRecords int                      `json:"new_records"`
	Nodes      int                      `json:"nodes"`
	Edges      int                      `json:"edges"`
	Unresolved []string                 `json:"unresolved,omitempty"`
	Filter     maintenance.FilterReport `json:"filter"`
	Dedup      dedup.Report             `json:"dedup"`
	Contracts  int                      `json:"contracts,omitempty"`
}

// FetchSearch runs the name, address and file-number searches and unions their records,
// first occurrence winning. Name and address inputs are uppercased.
func (w *Workspace) FetchSearch(ctx context.Context, req SearchRequest) ([]models.EntityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.FetchSearch")
	defer span.End()

	src := w.deps.Registry
	nameIDs, err := src.SearchNameIDs(ctx, strings.ToUpper(req.Name))
	if err != nil {
		return nil, fmt.Errorf("name search failed: %w", err)
	}
	addressIDs, err := src.SearchAddressIDs(ctx, strings.ToUpper(req.Address))
	if err != nil {
		return nil, fmt.Errorf("address search failed: %w", err)
	}

	byName, err := w.deps.Expansion.FetchChunked(ctx, registry.FieldNameID, nameIDs)
	if err != nil {
		return nil, fmt.Errorf("entity lookup by name failed: %w", err)
	}
	byAddress, err := w.deps.Expansion.FetchChunked(ctx, registry.FieldAddressID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("entity lookup by address failed: %w", err)
	}
	byFileNumber, err := src.SearchFileNumbers(ctx, req.FileNumber)
	if err != nil {
		return nil, fmt.Errorf("file number search failed: %w", err)
	}

	return records.Union(byName, byAddress, byFileNumber), nil
}

// FetchExpansion returns the records around the selected nodes, or around every node when the
// selection names no ids. A selection whose ids are all absent fetches nothing.
func (w *Workspace) FetchExpansion(ctx context.Context, sel Selection) ([]models.EntityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.FetchExpansion")
	defer span.End()

	w.mu.Lock()
	seeds := sel.resolve(w.g)
	snapshot := w.g.Clone()
	w.mu.Unlock()

	if len(sel.IDs) > 0 && len(seeds) == 0 {
		w.logger.WithContext(ctx).WithField("ids", sel.IDs).Debug("Expansion selection matches no nodes")
		return nil, nil
	}
	return w.deps.Expansion.Expand(ctx, snapshot, seeds)
}

// Search fetches and ingests the records a search returns
func (w *Workspace) Search(ctx context.Context, req SearchRequest) (Outcome, error) {
	recs, err := w.FetchSearch(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return w.Ingest(ctx, recs)
}

// Expand fetches and ingests the records around the selection
func (w *Workspace) Expand(ctx context.Context, sel Selection) (Outcome, error) {
	recs, err := w.FetchExpansion(ctx, sel)
	if err != nil {
		return Outcome{}, err
	}
	return w.Ingest(ctx, recs)
}

// Ingest graphs recs and folds them into the workspace graph: stubs are resolved on the
// fragment, the fragment is composed in, placeholders are filtered, manual combines are
// replayed and the company-name pass (or a full tidy) runs. A failure leaves the graph unchanged.
func (w *Workspace) Ingest(ctx context.Context, recs []models.EntityRecord) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.Ingest")
	defer span.End()

	log := w.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": w.id, "records": len(recs)})
	if len(recs) == 0 {
		log.Info("No results")
		w.mu.Lock()
		defer w.mu.Unlock()
		return Outcome{NoResults: true, Nodes: w.g.Len(), Edges: w.g.EdgeCount()}, nil
	}

	fragment := w.deps.Factory.MakeGraphs(recs, models.SourceRegistry)
	unresolved, err := w.deps.Resolver.ResolveStubs(ctx, fragment, w.labeled)
	if err != nil {
		return Outcome{}, fmt.Errorf("stub resolution failed: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	work := w.g.Clone()
	work.Merge(fragment)
	out := Outcome{Records: len(recs)}
	out.Filter = maintenance.FilterExcluded(ctx, work, w.deps.Policy, w.deps.Logger)
	w.replayCombines(work)
	if w.tidy {
		out.Dedup = w.deps.Dedup.TidyUp(ctx, work)
	} else {
		out.Dedup = w.deps.Dedup.CompanyNamePass(ctx, work)
	}
	work.DeduplicateEdges()

	before := len(w.history)
	w.history = records.Union(w.history, recs)
	out.NewRecords = len(w.history) - before
	out.Unresolved = stillUnlabeled(work, unresolved)
	out.Nodes = work.Len()
	out.Edges = work.EdgeCount()
	w.swap(work)

	log.WithFields(map[string]any{
		"new_records": out.NewRecords,
		"nodes":       out.Nodes,
		"edges":       out.Edges,
		"unresolved":  len(out.Unresolved),
	}).Info("Ingested records")

	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitGraphUpdated(ctx, w.id, work, len(recs))
	})
	return out, nil
}

// labeled reports whether the workspace graph already holds a labeled node for id
func (w *Workspace) labeled(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	holder, ok := w.g.Resolve(id)
	if !ok {
		return false
	}
	n, _ := w.g.Node(holder)
	return !n.IsStub()
}

func stillUnlabeled(g *graph.Graph, ids []string) []string {
	var out []string
	for _, id := range ids {
		holder, ok := g.Resolve(id)
		if !ok {
			continue
		}
		if n, _ := g.Node(holder); n.IsStub() {
			out = append(out, holder)
		}
	}
	return out
}

// afterChange emits the change event and, when enabled, republishes the graph.
// Callers hold w.mu. Failures are logged; the graph change stands.
func (w *Workspace) afterChange(ctx context.Context, emit func() error) {
	_ = emit()
	if !w.deps.AutoPublish || w.deps.Publisher == nil {
		return
	}
	if _, err := w.deps.Publisher.Publish(ctx, w.id, w.g); err != nil {
		w.logger.WithContext(ctx).WithError(err).Warn("Auto publish failed")
	}
}
