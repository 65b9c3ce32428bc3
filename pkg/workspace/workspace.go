// Package workspace owns one entity graph per workspace and runs the ingestion pipeline over it.
// Every graph mutation holds the workspace lock; remote fetches run outside it.
package workspace

import (
	"context"
	"net/http"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/internal/repositories/snapshot"
	"github.com/Ramsey-B/bramble/pkg/contracts"
	"github.com/Ramsey-B/bramble/pkg/dedup"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/expansion"
	"github.com/Ramsey-B/bramble/pkg/factory"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/graphdb"
	"github.com/Ramsey-B/bramble/pkg/maintenance"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/qng"
	"github.com/Ramsey-B/bramble/pkg/registry"
	"github.com/Ramsey-B/bramble/pkg/tasks"
	"github.com/google/uuid"
)

// Task names
const (
	TaskSearch         = "search"
	TaskExpand         = "expand"
	TaskContractSearch = "contract-search"
)

// SnapshotStore persists QNG documents. *snapshot.Repository satisfies it.
type SnapshotStore interface {
	Save(ctx context.Context, workspaceID, name string, doc qng.Document, nodeCount, edgeCount int) (*snapshot.Summary, error)
	List(ctx context.Context, workspaceID string) ([]snapshot.Summary, error)
	Get(ctx context.Context, workspaceID string, id uuid.UUID) (*snapshot.Snapshot, error)
	Delete(ctx context.Context, workspaceID string, id uuid.UUID) error
}

// GraphPublisher writes a workspace graph to a graph database. *graphdb.Publisher satisfies it.
type GraphPublisher interface {
	Publish(ctx context.Context, workspaceID string, g *graph.Graph) (graphdb.PublishResult, error)
}

// ContractSearcher searches contracts for node labels. *contracts.Client satisfies it.
type ContractSearcher interface {
	SearchNodes(ctx context.Context, nodes []graph.Node) ([]contracts.Result, error)
}

// Dependencies are the collaborators shared by every workspace. Registry, Expansion, Factory,
// Dedup and Resolver are required; the rest may be nil to disable their features.
type Dependencies struct {
	Registry    registry.Searcher
	Expansion   *expansion.Engine
	Factory     *factory.Factory
	Dedup       *dedup.Engine
	Resolver    *maintenance.Resolver
	Policy      maintenance.Policy
	Contracts   ContractSearcher
	Snapshots   SnapshotStore
	Publisher   GraphPublisher
	Emitter     *events.Emitter
	AutoPublish bool
	Logger      ectologger.Logger
}

// Workspace is the single owner of one graph, its record history and its manual combines
type Workspace struct {
	id   string
	deps Dependencies

	mu        sync.Mutex
	g         *graph.Graph
	history   []models.EntityRecord
	combined  [][]string
	tidy      bool
	contracts []contracts.Result
	outcomes  map[string]Outcome

	tasks  *tasks.Runner
	logger ectologger.Logger
}

// New creates an empty workspace
func New(id string, deps Dependencies) *Workspace {
	return &Workspace{
		id:       id,
		deps:     deps,
		g:        graph.New(),
		outcomes: make(map[string]Outcome),
		tasks:    tasks.NewRunner(deps.Logger),
		logger:   deps.Logger,
	}
}

// ID returns the workspace id
func (w *Workspace) ID() string {
	return w.id
}

// Graph returns a copy of the current graph
func (w *Workspace) Graph() *graph.Graph {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.g.Clone()
}

// Records returns the record history in fetch order
func (w *Workspace) Records() []models.EntityRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.EntityRecord(nil), w.history...)
}

// Tidy reports whether full deduplication runs after every ingestion
func (w *Workspace) Tidy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tidy
}

// Nodes maps each node's display label to its id. An unlabeled node is listed under its id.
func (w *Workspace) Nodes() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, w.g.Len())
	for _, n := range w.g.Nodes() {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		out[label] = n.ID
	}
	return out
}

// Close cancels the workspace's background tasks and waits for them
func (w *Workspace) Close(ctx context.Context) error {
	return w.tasks.Shutdown(ctx)
}

// swap replaces the graph and records its size. Callers hold w.mu.
func (w *Workspace) swap(g *graph.Graph) {
	w.g = g
	metrics.GraphNodes.WithLabelValues(w.id).Set(float64(g.Len()))
	metrics.GraphEdges.WithLabelValues(w.id).Set(float64(g.EdgeCount()))
}

// replayCombines re-applies every manual combine. Callers hold w.mu.
func (w *Workspace) replayCombines(g *graph.Graph) {
	for _, ids := range w.combined {
		g.Combine(ids, w.deps.Dedup.CanonicalSource())
	}
}

func notConfigured(feature string) error {
	return httperror.NewHTTPErrorf(http.StatusNotImplemented, "%s is not configured", feature)
}
