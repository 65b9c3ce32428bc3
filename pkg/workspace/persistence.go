package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/bramble/internal/repositories/snapshot"
	"github.com/Ramsey-B/bramble/pkg/contracts"
	"github.com/Ramsey-B/bramble/pkg/export"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/graphdb"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/qng"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/google/uuid"
)

// LoadQNG composes a QNG document into the graph. A malformed document changes nothing.
func (w *Workspace) LoadQNG(ctx context.Context, r io.Reader) error {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.LoadQNG")
	defer span.End()

	loaded, err := qng.Decode(r)
	if err != nil {
		w.logger.WithContext(ctx).WithError(err).Warn("Rejected QNG document")
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	work := w.g.Clone()
	work.Merge(loaded)
	w.swap(work)

	w.logger.WithContext(ctx).WithFields(map[string]any{
		"workspace_id": w.id,
		"loaded_nodes": loaded.Len(),
		"nodes":        work.Len(),
	}).Info("Loaded QNG document")
	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitGraphLoaded(ctx, w.id, work)
	})
	return nil
}

// SaveQNG writes the graph as a QNG document
func (w *Workspace) SaveQNG(out io.Writer) error {
	w.mu.Lock()
	g := w.g.Clone()
	w.mu.Unlock()
	return qng.Write(out, g)
}

// ExportRows returns the business-data rows of the record history labeled by the current graph
func (w *Workspace) ExportRows() []export.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return export.Rows(w.history, w.g)
}

// ExportBusinessData writes the business-data CSV
func (w *Workspace) ExportBusinessData(out io.Writer) error {
	return export.WriteCSV(out, w.ExportRows())
}

// contractTargets returns the labeled nodes to search contracts for
func (w *Workspace) contractTargets(sel Selection) []graph.Node {
	w.mu.Lock()
	defer w.mu.Unlock()

	var nodes []graph.Node
	if len(sel.IDs) == 0 {
		for _, n := range w.g.Nodes() {
			if n.Type == models.NodeTypeCompany || n.Type == models.NodeTypeInactiveCompany {
				nodes = append(nodes, n)
			}
		}
		return nodes
	}
	for _, id := range sel.resolve(w.g) {
		if n, ok := w.g.Node(id); ok && !n.IsStub() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// SearchContracts searches contracts for the selected nodes and graphs the results
func (w *Workspace) SearchContracts(ctx context.Context, sel Selection) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.SearchContracts")
	defer span.End()

	if w.deps.Contracts == nil {
		return Outcome{}, notConfigured("contracts search")
	}
	results, err := w.deps.Contracts.SearchNodes(ctx, w.contractTargets(sel))
	if err != nil {
		return Outcome{}, err
	}
	return w.ApplyContracts(ctx, results), nil
}

// ApplyContracts records contract results and graphs them against their nodes
func (w *Workspace) ApplyContracts(ctx context.Context, results []contracts.Result) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(results) == 0 {
		return Outcome{NoResults: true, Nodes: w.g.Len(), Edges: w.g.EdgeCount()}
	}

	w.contracts = contracts.Dedupe(append(w.contracts, results...))
	work := w.g.Clone()
	work.Merge(w.deps.Factory.MakeGraphFromRows(contracts.Rows(results), models.SourceContracts))
	work.DeduplicateEdges()
	w.swap(work)

	w.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": w.id, "results": len(results)}).Info("Graphed contract results")
	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitGraphUpdated(ctx, w.id, work, 0)
	})
	return Outcome{Contracts: len(results), Nodes: work.Len(), Edges: work.EdgeCount()}
}

// Contracts returns every contract result found so far
func (w *Workspace) Contracts() []contracts.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]contracts.Result, len(w.contracts))
	copy(out, w.contracts)
	return out
}

// Snapshot stores the graph under name
func (w *Workspace) Snapshot(ctx context.Context, name string) (*snapshot.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.Snapshot")
	defer span.End()

	if w.deps.Snapshots == nil {
		return nil, notConfigured("snapshot storage")
	}
	g := w.Graph()
	return w.deps.Snapshots.Save(ctx, w.id, name, qng.Encode(g), g.Len(), g.EdgeCount())
}

// Snapshots lists the workspace's stored snapshots
func (w *Workspace) Snapshots(ctx context.Context) ([]snapshot.Summary, error) {
	if w.deps.Snapshots == nil {
		return nil, notConfigured("snapshot storage")
	}
	return w.deps.Snapshots.List(ctx, w.id)
}

// DeleteSnapshot removes a stored snapshot
func (w *Workspace) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	if w.deps.Snapshots == nil {
		return notConfigured("snapshot storage")
	}
	return w.deps.Snapshots.Delete(ctx, w.id, id)
}

// Restore replaces the graph with a stored snapshot. Manual combines are dropped because the
// snapshot already carries their effect; the record history is kept.
func (w *Workspace) Restore(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.Restore")
	defer span.End()

	if w.deps.Snapshots == nil {
		return notConfigured("snapshot storage")
	}
	s, err := w.deps.Snapshots.Get(ctx, w.id, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s.Document.Data)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", id, err)
	}
	restored, err := qng.Decode(bytes.NewReader(data))
	if err != nil {
		return httperror.WrapError(http.StatusUnprocessableEntity, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.combined = nil
	w.swap(restored)

	w.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": w.id, "snapshot_id": id.String()}).Info("Restored snapshot")
	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitSnapshotRestored(ctx, w.id, restored)
	})
	return nil
}

// Publish writes the graph to the graph database
func (w *Workspace) Publish(ctx context.Context) (graphdb.PublishResult, error) {
	if w.deps.Publisher == nil {
		return graphdb.PublishResult{}, notConfigured("graph publishing")
	}
	return w.deps.Publisher.Publish(ctx, w.id, w.Graph())
}
