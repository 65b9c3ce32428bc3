package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Graph {
	g := New()
	g.AddNode(Node{ID: "LLC1", Label: "ACME LLC", Type: "company", DataSource: "il_sos"})
	g.AddNode(Node{ID: "N1", Label: "SMITH, JOHN A", Type: "person", DataSource: "il_sos"})
	g.AddNode(Node{ID: "A1", Label: "1 MAIN ST", Type: "address", DataSource: "il_sos"})
	g.AddEdge("N1", "LLC1", "agent", map[string]any{"role": "agent"})
	g.AddEdge("N1", "A1", "agent", nil)
	return g
}

func TestAddEdge_CreatesStubs(t *testing.T) {
	g := New()
	g.AddEdge("N9", "LLC9", "manager", nil)

	require.True(t, g.HasNode("N9"))
	require.True(t, g.HasNode("LLC9"))
	assert.Equal(t, []string{"N9", "LLC9"}, g.Unlabeled())
	assert.True(t, g.HasEdge("LLC9", "N9", "manager"))
	assert.False(t, g.HasEdge("LLC9", "N9", "agent"))
}

func TestRemoveNodes(t *testing.T) {
	g := sample()

	removed := g.RemoveNodes("N1", "missing")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, g.EdgeCount(), "incident edges go with the node")
	assert.Equal(t, []string{"LLC1", "A1"}, g.NodeIDs())
	for _, e := range g.Edges() {
		assert.True(t, g.HasNode(e.Source))
		assert.True(t, g.HasNode(e.Target))
	}
}

func TestCompose(t *testing.T) {
	t.Run("composing a graph with itself is identity", func(t *testing.T) {
		g := sample()
		g.AddEdge("N1", "LLC1", "agent", map[string]any{"role": "agent"})
		out := Compose(g, g)

		assert.Equal(t, g.Nodes(), out.Nodes())
		assert.Equal(t, g.Edges(), out.Edges())
	})

	t.Run("b wins only on fields it defines", func(t *testing.T) {
		a := New()
		a.AddNode(Node{ID: "LLC1", Label: "ACME LLC", Type: "company", DataSource: "il_sos", Attributes: map[string]any{"x": 1}})
		b := New()
		b.AddNode(Node{ID: "LLC1", Type: "company (inactive)", Attributes: map[string]any{"y": 2}})

		out := Compose(a, b)
		n, ok := out.Node("LLC1")
		require.True(t, ok)
		assert.Equal(t, "ACME LLC", n.Label)
		assert.Equal(t, "company (inactive)", n.Type)
		assert.Equal(t, "il_sos", n.DataSource)
		assert.Equal(t, map[string]any{"x": 1, "y": 2}, n.Attributes)
	})

	t.Run("edges are added beyond existing occurrences", func(t *testing.T) {
		a := New()
		a.AddEdge("N1", "LLC1", "agent", nil)
		b := New()
		b.AddEdge("LLC1", "N1", "agent", nil)
		b.AddEdge("N1", "LLC1", "agent", nil)
		b.AddEdge("N1", "LLC1", "manager", nil)

		out := Compose(a, b)
		assert.Equal(t, 3, out.EdgeCount())
		assert.Equal(t, 1, a.EdgeCount(), "inputs are untouched")
	})

	t.Run("nodes folded in a stay folded", func(t *testing.T) {
		a := sample()
		a.AddNode(Node{ID: "N2", Label: "SMITH, JOHN", Type: "person"})
		a.AddEdge("N2", "LLC1", "manager", nil)
		survivor, merged := a.Combine([]string{"N1", "N2"}, "il_sos")
		require.True(t, merged)
		require.Equal(t, "N1", survivor)

		b := New()
		b.AddNode(Node{ID: "N2", Label: "SMITH, JOHN", Type: "person"})
		b.AddEdge("N2", "A7", "manager", nil)

		out := Compose(a, b)
		assert.False(t, out.HasNode("N2"))
		assert.True(t, out.HasEdge("N1", "A7", "manager"))
	})
}

func TestCombine(t *testing.T) {
	t.Run("survivor prefers the canonical source then the smallest id", func(t *testing.T) {
		g := New()
		g.AddNode(Node{ID: "A1", Label: "X", DataSource: "other"})
		g.AddNode(Node{ID: "A2", Label: "Y", DataSource: "il_sos"})
		g.AddNode(Node{ID: "A3", Label: "Z", DataSource: "il_sos"})

		survivor, merged := g.Combine([]string{"A1", "A3", "A2"}, "il_sos")
		require.True(t, merged)
		assert.Equal(t, "A2", survivor)

		n, _ := g.Node("A2")
		assert.Equal(t, []string{"A1", "A2", "A3"}, n.AliasIDs)
		assert.Equal(t, "Y", n.Label, "survivor keeps its own attributes")
		assert.Equal(t, "X", n.MergeData["A1"]["label"])
		assert.Equal(t, "Z", n.MergeData["A3"]["label"])
	})

	t.Run("edges move to the survivor and internal edges become self-loops", func(t *testing.T) {
		g := New()
		g.AddNode(Node{ID: "N1", Label: "SMITH, JOHN A"})
		g.AddNode(Node{ID: "N2", Label: "SMITH, JOHN"})
		g.AddEdge("N1", "LLC1", "agent", nil)
		g.AddEdge("N2", "LLC1", "agent", nil)
		g.AddEdge("N1", "N2", "related", nil)

		survivor, merged := g.Combine([]string{"N1", "N2", "nope"}, "il_sos")
		require.True(t, merged)
		assert.Equal(t, "N1", survivor)
		assert.False(t, g.HasNode("N2"))
		assert.Equal(t, 3, g.EdgeCount(), "parallel edges survive")

		selfLoops := 0
		for _, e := range g.Edges() {
			assert.True(t, g.HasNode(e.Source))
			assert.True(t, g.HasNode(e.Target))
			if e.IsSelfLoop() {
				selfLoops++
			}
		}
		assert.Equal(t, 1, selfLoops)
	})

	t.Run("re-merging the same set is a no-op", func(t *testing.T) {
		g := sample()
		g.AddNode(Node{ID: "N2", Label: "SMITH, JOHN"})
		_, merged := g.Combine([]string{"N1", "N2"}, "il_sos")
		require.True(t, merged)
		before := g.Nodes()

		survivor, merged := g.Combine([]string{"N2", "N1"}, "il_sos")
		assert.False(t, merged)
		assert.Equal(t, "N1", survivor)
		assert.Equal(t, before, g.Nodes())
	})

	t.Run("aliases accumulate across merges", func(t *testing.T) {
		g := New()
		for _, id := range []string{"N1", "N2", "N3"} {
			g.AddNode(Node{ID: id, Label: id})
		}
		g.Combine([]string{"N2", "N3"}, "il_sos")
		survivor, merged := g.Combine([]string{"N3", "N1"}, "il_sos")
		require.True(t, merged)
		assert.Equal(t, "N1", survivor)

		n, _ := g.Node("N1")
		assert.Equal(t, []string{"N1", "N2", "N3"}, n.AliasIDs)
		assert.Contains(t, n.MergeData, "N2")
		assert.Contains(t, n.MergeData, "N3")
		assert.Equal(t, []string{"N1", "N2", "N3"}, g.AliasIDs([]string{"N2"}))
	})
}

func TestDeduplicateEdges(t *testing.T) {
	g := New()
	g.AddEdge("N1", "LLC1", "agent", map[string]any{"role": "agent"})
	g.AddEdge("LLC1", "N1", "agent", map[string]any{"role": "agent"})
	g.AddEdge("N1", "LLC1", "agent", map[string]any{"role": "other"})
	g.AddEdge("N1", "LLC1", "manager", nil)

	assert.Equal(t, 1, g.DeduplicateEdges())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, 0, g.DeduplicateEdges(), "idempotent")
	assert.Equal(t, 0, g.Edges()[0].ID, "first edge kept")
}

func TestConnectedNodes(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "x", nil)
	g.AddEdge("b", "c", "x", nil)
	g.AddEdge("c", "a", "x", nil)
	g.AddEdge("c", "d", "x", nil)
	g.AddEdge("e", "e", "x", nil)

	tests := []struct {
		name  string
		ids   []string
		depth int
		want  []string
	}{
		{name: "whole component through a cycle", ids: []string{"a"}, depth: 0, want: []string{"a", "b", "c", "d"}},
		{name: "one hop", ids: []string{"a"}, depth: 1, want: []string{"a", "b", "c"}},
		{name: "self loop only", ids: []string{"e"}, depth: 0, want: []string{"e"}},
		{name: "absent ids ignored", ids: []string{"zz", "d"}, depth: 1, want: []string{"d", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.ConnectedNodes(tt.ids, tt.depth))
		})
	}
}

func TestInducedSubgraph(t *testing.T) {
	g := sample()
	sub := g.InducedSubgraph([]string{"N1", "LLC1", "missing"})

	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, 1, sub.EdgeCount())
	assert.True(t, sub.HasEdge("N1", "LLC1", "agent"))
	assert.Equal(t, 3, g.Len())
}

func TestClone_IsIndependent(t *testing.T) {
	g := sample()
	c := g.Clone()
	c.UpdateNode("N1", func(n *Node) { n.Label = "CHANGED" })
	c.RemoveNodes("A1")

	n, _ := g.Node("N1")
	assert.Equal(t, "SMITH, JOHN A", n.Label)
	assert.True(t, g.HasNode("A1"))
	assert.Equal(t, 2, g.EdgeCount())
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	var out struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Nodes, 3)
	assert.Len(t, out.Edges, 2)
}
