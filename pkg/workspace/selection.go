package workspace

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/bramble/pkg/dedup"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Selection scopes
const (
	ScopeIDs       = "ids"
	ScopeNeighbors = "neighbors"
	ScopeComponent = "component"
)

// Selection names nodes by id, optionally widened to their neighbors or their connected component
type Selection struct {
	IDs   []string `json:"ids"`
	Scope string   `json:"scope,omitempty" validate:"omitempty,oneof=ids neighbors component"`
}

// resolve maps the selection onto current node ids. Folded ids resolve to their survivor and
// absent ids are dropped.
func (s Selection) resolve(g *graph.Graph) []string {
	seen := make(map[string]struct{}, len(s.IDs))
	var ids []string
	for _, id := range s.IDs {
		holder, ok := g.Resolve(id)
		if !ok {
			continue
		}
		if _, dup := seen[holder]; dup {
			continue
		}
		seen[holder] = struct{}{}
		ids = append(ids, holder)
	}

	switch s.Scope {
	case ScopeNeighbors:
		return g.ConnectedNodes(ids, 1)
	case ScopeComponent:
		return g.ConnectedNodes(ids, 0)
	default:
		return ids
	}
}

// CombineResult reports a manual combine
type CombineResult struct {
	Survivor string   `json:"survivor"`
	Merged   bool     `json:"merged"`
	IDs      []string `json:"ids"`
}

// Combine merges the selected nodes and records the combine so it is replayed after every rebuild
func (w *Workspace) Combine(ctx context.Context, sel Selection) (CombineResult, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.Combine")
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()

	ids := sel.resolve(w.g)
	if len(ids) < 2 {
		return CombineResult{IDs: ids}, httperror.NewHTTPErrorf(http.StatusBadRequest, "combine needs at least two nodes, %d selected", len(ids))
	}

	work := w.g.Clone()
	survivor, merged := work.Combine(ids, w.deps.Dedup.CanonicalSource())
	w.combined = append(w.combined, ids)
	w.swap(work)

	w.logger.WithContext(ctx).WithFields(map[string]any{
		"workspace_id": w.id,
		"survivor":     survivor,
		"ids":          ids,
	}).Info("Combined nodes")

	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitNodesCombined(ctx, w.id, work, ids, survivor)
	})
	return CombineResult{Survivor: survivor, Merged: merged, IDs: ids}, nil
}

// Remove deletes the selected nodes and their edges. It returns the removed ids.
func (w *Workspace) Remove(ctx context.Context, sel Selection) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.Remove")
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()

	ids := sel.resolve(w.g)
	if len(ids) == 0 {
		return nil, nil
	}

	work := w.g.Clone()
	work.RemoveNodes(ids...)
	w.swap(work)

	w.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": w.id, "removed": len(ids)}).Info("Removed nodes")
	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitNodesRemoved(ctx, w.id, work, ids)
	})
	return ids, nil
}

// TidyNow runs full deduplication over the graph
func (w *Workspace) TidyNow(ctx context.Context) dedup.Report {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.TidyNow")
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tidyLocked(ctx)
}

// SetTidy turns full deduplication after every ingestion on or off. Turning it on tidies now.
func (w *Workspace) SetTidy(ctx context.Context, on bool) *dedup.Report {
	ctx, span := tracing.StartSpan(ctx, "workspace.Workspace.SetTidy")
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.tidy = on
	w.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": w.id, "tidy": on}).Info("Tidy mode set")
	if !on {
		return nil
	}
	report := w.tidyLocked(ctx)
	return &report
}

func (w *Workspace) tidyLocked(ctx context.Context) dedup.Report {
	work := w.g.Clone()
	report := w.deps.Dedup.TidyUp(ctx, work)
	work.DeduplicateEdges()
	w.swap(work)

	w.afterChange(ctx, func() error {
		return w.deps.Emitter.EmitGraphTidied(ctx, w.id, work, report.NodesFolded)
	})
	return report
}
