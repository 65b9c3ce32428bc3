package workspace

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/internal/repositories/snapshot"
	"github.com/Ramsey-B/bramble/pkg/contracts"
	"github.com/Ramsey-B/bramble/pkg/dedup"
	"github.com/Ramsey-B/bramble/pkg/expansion"
	"github.com/Ramsey-B/bramble/pkg/factory"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/graphdb"
	"github.com/Ramsey-B/bramble/pkg/maintenance"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/qng"
	"github.com/Ramsey-B/bramble/pkg/registry"
	"github.com/Ramsey-B/bramble/pkg/tasks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fk(label string, value int64) *models.ForeignKey {
	return &models.ForeignKey{Label: label, Value: value}
}

var table = []models.EntityRecord{
	{ID: 1, FileNumber: "LLC1", Type: models.RoleCompany, Name: fk("ACME LLC", 10), Address: fk("1 MAIN ST", 500)},
	{ID: 2, FileNumber: "LLC1", Type: models.RolePresident, Name: fk("SMITH, JOHN", 11), Address: fk("2 OAK AVE", 501)},
	{ID: 3, FileNumber: "LLC2", Type: models.RoleAgent, Name: fk("SMITH, JOHN A", 14)},
	{ID: 4, FileNumber: "LLC2", Type: models.RoleCompany, Name: fk("WIDGET INC", 15)},
	{ID: 5, FileNumber: "LLC9", Type: models.RoleAgent, Name: fk("JOHN DOE REVOKED ", 16)},
	{ID: 6, FileNumber: "LLC9", Type: models.RoleCompany, Name: fk("GONE CORP", 17)},
}

// fakeRegistry answers searches and filter queries from table
type fakeRegistry struct {
	mu       sync.Mutex
	patterns []string
	nameIDs  []string
	fail     error
	block    chan struct{}
	fetches  int
}

func (f *fakeRegistry) FetchEntities(ctx context.Context, field string, values []string) ([]models.EntityRecord, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	want := make(map[string]struct{}, len(values))
	for _, v := range values {
		want[v] = struct{}{}
	}
	var out []models.EntityRecord
	for _, r := range table {
		var key string
		switch field {
		case registry.FieldFileNumber:
			key = r.FileNumber
		case registry.FieldNameID:
			key = strconv.FormatInt(r.Name.Value, 10)
		case registry.FieldAddressID:
			if r.Address != nil {
				key = strconv.FormatInt(r.Address.Value, 10)
			}
		}
		if _, ok := want[key]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistry) SearchNameIDs(ctx context.Context, pattern string) ([]string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if pattern == "" {
		return nil, nil
	}
	f.mu.Lock()
	f.patterns = append(f.patterns, pattern)
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return f.nameIDs, nil
}

func (f *fakeRegistry) SearchAddressIDs(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func (f *fakeRegistry) SearchFileNumbers(ctx context.Context, pattern string) ([]models.EntityRecord, error) {
	if pattern == "" {
		return nil, nil
	}
	var out []models.EntityRecord
	for _, r := range table {
		if strings.Contains(r.FileNumber, pattern) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memorySnapshots struct {
	stored map[uuid.UUID]*snapshot.Snapshot
}

func (m *memorySnapshots) Save(ctx context.Context, workspaceID, name string, doc qng.Document, nodeCount, edgeCount int) (*snapshot.Summary, error) {
	s := &snapshot.Snapshot{Summary: snapshot.Summary{ID: uuid.New(), WorkspaceID: workspaceID, Name: name, NodeCount: nodeCount, EdgeCount: edgeCount}}
	s.Document.Data = doc
	m.stored[s.ID] = s
	return &s.Summary, nil
}

func (m *memorySnapshots) List(ctx context.Context, workspaceID string) ([]snapshot.Summary, error) {
	var out []snapshot.Summary
	for _, s := range m.stored {
		if s.WorkspaceID == workspaceID {
			out = append(out, s.Summary)
		}
	}
	return out, nil
}

func (m *memorySnapshots) Get(ctx context.Context, workspaceID string, id uuid.UUID) (*snapshot.Snapshot, error) {
	s, ok := m.stored[id]
	if !ok || s.WorkspaceID != workspaceID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "snapshot not found")
	}
	return s, nil
}

func (m *memorySnapshots) Delete(ctx context.Context, workspaceID string, id uuid.UUID) error {
	if _, err := m.Get(ctx, workspaceID, id); err != nil {
		return err
	}
	delete(m.stored, id)
	return nil
}

type fakePublisher struct {
	calls int
}

func (p *fakePublisher) Publish(ctx context.Context, workspaceID string, g *graph.Graph) (graphdb.PublishResult, error) {
	p.calls++
	return graphdb.PublishResult{Nodes: g.Len(), Relationships: g.EdgeCount()}, nil
}

type fakeContracts struct{}

func (fakeContracts) SearchNodes(ctx context.Context, nodes []graph.Node) ([]contracts.Result, error) {
	var out []contracts.Result
	for _, n := range nodes {
		if n.Label != "ACME LLC" {
			continue
		}
		out = append(out, contracts.Result{
			ResultID:       "CHI-1001-0",
			NodeID:         n.ID,
			Keyword:        n.Label,
			ContractNumber: "1001",
			RevisionNumber: "0",
			Fields:         map[string]any{contracts.FieldVendor: "ACME LLC"},
		})
	}
	return out, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testDeps(t *testing.T, reg *fakeRegistry) Dependencies {
	t.Helper()
	f, err := factory.Default()
	require.NoError(t, err)
	policy := maintenance.DefaultPolicy()
	engine := expansion.NewEngine(reg, policy, expansion.DefaultConfig(), testLogger())
	return Dependencies{
		Registry:  reg,
		Expansion: engine,
		Factory:   f,
		Dedup:     dedup.NewEngine(nil, nil, dedup.DefaultConfig(), testLogger()),
		Resolver:  maintenance.NewResolver(engine, f, 0, testLogger()),
		Policy:    policy,
		Logger:    testLogger(),
	}
}

func newTestWorkspace(t *testing.T) (*Workspace, *fakeRegistry) {
	reg := &fakeRegistry{nameIDs: []string{"11", "14"}}
	return New("ws1", testDeps(t, reg)), reg
}

func TestSearch_IngestsAndResolvesStubs(t *testing.T) {
	w, reg := newTestWorkspace(t)

	out, err := w.Search(context.Background(), SearchRequest{Name: "smith%"})
	require.NoError(t, err)
	assert.False(t, out.NoResults)
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 2, out.NewRecords)
	assert.Empty(t, out.Unresolved)
	assert.Equal(t, []string{"SMITH%"}, reg.patterns, "name input is uppercased")

	g := w.Graph()
	acme, ok := g.Node("LLC1")
	require.True(t, ok)
	assert.Equal(t, "ACME LLC", acme.Label, "stub resolved by file number")
	widget, ok := g.Node("LLC2")
	require.True(t, ok)
	assert.Equal(t, "WIDGET INC", widget.Label)
	assert.True(t, g.HasNode("N11"))
	assert.True(t, g.HasNode("N14"), "people are not merged without tidy")
	assert.Len(t, w.Records(), 2)

	again, err := w.Search(context.Background(), SearchRequest{Name: "smith%"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.NewRecords)
	assert.Equal(t, out.Nodes, again.Nodes, "ingesting the same records is idempotent")
	assert.Equal(t, out.Edges, again.Edges)
}

func TestSearch_NoResults(t *testing.T) {
	w, reg := newTestWorkspace(t)
	reg.nameIDs = nil

	out, err := w.Search(context.Background(), SearchRequest{Name: "nobody"})
	require.NoError(t, err)
	assert.True(t, out.NoResults)
	assert.Equal(t, 0, w.Graph().Len())
}

func TestExpand_AbsentSelectionFetchesNothing(t *testing.T) {
	w, reg := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)
	before := w.Graph().Len()
	reg.fetches = 0

	out, err := w.Expand(context.Background(), Selection{IDs: []string{"N99999"}})
	require.NoError(t, err)
	assert.True(t, out.NoResults)
	assert.Equal(t, 0, reg.fetches, "no registry query for a selection matching no nodes")
	assert.Equal(t, before, w.Graph().Len())

	out, err = w.Expand(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Positive(t, reg.fetches, "an empty selection expands every node")
	assert.False(t, out.NoResults)
}

func TestSearch_FailureLeavesGraphUnchanged(t *testing.T) {
	w, reg := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)
	before := w.Graph().Len()

	reg.fail = errors.New("registry down")
	_, err = w.Search(context.Background(), SearchRequest{Name: "smith"})
	assert.ErrorContains(t, err, "registry down")
	assert.Equal(t, before, w.Graph().Len())
}

func TestIngest_FiltersPlaceholders(t *testing.T) {
	w, _ := newTestWorkspace(t)

	out, err := w.Ingest(context.Background(), []models.EntityRecord{table[4]})
	require.NoError(t, err)
	assert.Contains(t, out.Filter.Removed, "N16")
	assert.Contains(t, out.Filter.Retyped, "LLC9")

	g := w.Graph()
	assert.False(t, g.HasNode("N16"))
	gone, ok := g.Node("LLC9")
	require.True(t, ok)
	assert.Equal(t, models.NodeTypeInactiveCompany, gone.Type)
}

func TestCombine_ReplayedAfterIngest(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{Name: "smith"})
	require.NoError(t, err)

	res, err := w.Combine(context.Background(), Selection{IDs: []string{"N14", "N11"}})
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, "N11", res.Survivor)

	_, err = w.Ingest(context.Background(), []models.EntityRecord{table[2]})
	require.NoError(t, err)

	g := w.Graph()
	assert.False(t, g.HasNode("N14"))
	john, ok := g.Node("N11")
	require.True(t, ok)
	assert.Equal(t, []string{"N11", "N14"}, john.AliasIDs)

	_, err = w.Combine(context.Background(), Selection{IDs: []string{"N11"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRemove_WithNeighbors(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)

	removed, err := w.Remove(context.Background(), Selection{IDs: []string{"LLC1", "missing"}, Scope: ScopeNeighbors})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"LLC1", "N11", "A500"}, removed)

	g := w.Graph()
	assert.False(t, g.HasNode("LLC1"))
	assert.True(t, g.HasNode("A501"), "two hops away is kept")
}

func TestSetTidy(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{Name: "smith"})
	require.NoError(t, err)

	assert.Nil(t, w.SetTidy(context.Background(), false))
	report := w.SetTidy(context.Background(), true)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.GroupsMerged)
	assert.True(t, w.Tidy())

	g := w.Graph()
	assert.False(t, g.HasNode("N14"))
	assert.True(t, g.HasNode("N11"))
}

func TestNodes(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Ingest(context.Background(), []models.EntityRecord{table[0]})
	require.NoError(t, err)

	nodes := w.Nodes()
	assert.Equal(t, "LLC1", nodes["ACME LLC"])
	assert.Equal(t, "A500", nodes["1 MAIN ST"])
}

func TestQNG_SaveAndLoad(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.SaveQNG(&buf))

	other, _ := newTestWorkspace(t)
	require.NoError(t, other.LoadQNG(context.Background(), bytes.NewReader(buf.Bytes())))
	assert.Equal(t, w.Graph().Len(), other.Graph().Len())
	assert.Equal(t, w.Graph().EdgeCount(), other.Graph().EdgeCount())

	err = other.LoadQNG(context.Background(), strings.NewReader(`{"adjacency": {}}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Equal(t, w.Graph().Len(), other.Graph().Len(), "a rejected document changes nothing")
}

func TestExportBusinessData(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.ExportBusinessData(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,file_number,company,type,name,address", lines[0])
	assert.Contains(t, lines[1], "ACME LLC")
}

func TestContracts(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.SearchContracts(context.Background(), Selection{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotImplemented, httperror.GetStatusCode(err))

	w.deps.Contracts = fakeContracts{}
	_, err = w.Ingest(context.Background(), []models.EntityRecord{table[0]})
	require.NoError(t, err)

	out, err := w.SearchContracts(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Contracts)
	assert.Len(t, w.Contracts(), 1)
	assert.True(t, w.Graph().HasEdge("LLC1", "CHI-1001-0", "contract"))

	_, err = w.SearchContracts(context.Background(), Selection{IDs: []string{"LLC1"}})
	require.NoError(t, err)
	assert.Len(t, w.Contracts(), 1, "results are deduplicated by result id")
}

func TestSnapshots(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Snapshot(context.Background(), "daily")
	assert.Equal(t, http.StatusNotImplemented, httperror.GetStatusCode(err))

	w.deps.Snapshots = &memorySnapshots{stored: map[uuid.UUID]*snapshot.Snapshot{}}
	_, err = w.Search(context.Background(), SearchRequest{FileNumber: "LLC1"})
	require.NoError(t, err)
	nodes := w.Graph().Len()

	saved, err := w.Snapshot(context.Background(), "daily")
	require.NoError(t, err)
	assert.Equal(t, nodes, saved.NodeCount)

	_, err = w.Remove(context.Background(), Selection{IDs: []string{"LLC1"}, Scope: ScopeComponent})
	require.NoError(t, err)
	assert.Equal(t, 0, w.Graph().Len())

	require.NoError(t, w.Restore(context.Background(), saved.ID))
	assert.Equal(t, nodes, w.Graph().Len())

	list, err := w.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = w.Restore(context.Background(), uuid.New())
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	require.NoError(t, w.DeleteSnapshot(context.Background(), saved.ID))
	list, err = w.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPublish(t *testing.T) {
	w, _ := newTestWorkspace(t)
	_, err := w.Publish(context.Background())
	assert.Equal(t, http.StatusNotImplemented, httperror.GetStatusCode(err))

	pub := &fakePublisher{}
	w.deps.Publisher = pub
	_, err = w.Ingest(context.Background(), []models.EntityRecord{table[0]})
	require.NoError(t, err)
	assert.Equal(t, 0, pub.calls, "auto publish is off")

	res, err := w.Publish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nodes)

	w.deps.AutoPublish = true
	_, err = w.Remove(context.Background(), Selection{IDs: []string{"A500"}})
	require.NoError(t, err)
	assert.Equal(t, 2, pub.calls)
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStartSearch(t *testing.T) {
	w, reg := newTestWorkspace(t)
	reg.block = make(chan struct{})

	_, err := w.StartSearch(context.Background(), SearchRequest{Name: "smith"})
	require.NoError(t, err)
	_, err = w.StartSearch(context.Background(), SearchRequest{Name: "smith"})
	assert.ErrorIs(t, err, tasks.ErrTaskInFlight)

	close(reg.block)
	status, err := w.WaitTask(waitCtx(t), TaskSearch)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusSucceeded, status.Status)
	require.NotNil(t, status.Outcome)
	assert.Equal(t, 2, status.Outcome.Records)
	assert.True(t, w.Graph().HasNode("N11"))

	_, err = w.Task(TaskExpand)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestStartExpand_Cancel(t *testing.T) {
	w, reg := newTestWorkspace(t)
	_, err := w.Ingest(context.Background(), []models.EntityRecord{table[0]})
	require.NoError(t, err)
	before := w.Graph().Len()

	reg.block = make(chan struct{})
	_, err = w.StartSearch(context.Background(), SearchRequest{Name: "smith"})
	require.NoError(t, err)
	assert.True(t, w.CancelTask(TaskSearch))

	status, err := w.WaitTask(waitCtx(t), TaskSearch)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCanceled, status.Status)
	assert.Nil(t, status.Outcome)
	assert.Equal(t, before, w.Graph().Len())

	reg.block = nil
	_, err = w.StartExpand(context.Background(), Selection{IDs: []string{"A500"}})
	require.NoError(t, err)
	status, err = w.WaitTask(waitCtx(t), TaskExpand)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusSucceeded, status.Status)
	assert.True(t, w.Graph().HasNode("N11"), "second hop by file number")

	require.NoError(t, w.Close(waitCtx(t)))
}

func TestManager(t *testing.T) {
	m := NewManager(testDeps(t, &fakeRegistry{}))
	a := m.Get("b")
	assert.Same(t, a, m.Get("b"))
	m.Get("a")
	assert.Equal(t, []string{"a", "b"}, m.IDs())

	dropped, err := m.Drop(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, dropped)
	dropped, err = m.Drop(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, dropped)

	require.NoError(t, m.Close(waitCtx(t)))
}
