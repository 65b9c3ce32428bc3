package qng

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileA = `{
	"adjacency": {
		"LLC1": {"N1": {"0": {"type": "agent"}, "1": {"type": "manager"}}},
		"N1": {"LLC1": {"0": {"type": "agent"}, "1": {"type": "manager"}}},
		"A1": {}
	},
	"node_attrs": {
		"LLC1": {"label": "Acme LLC", "type": "company", "source": "il_sos", "file_number": "LLC1"},
		"N1": {"label": "smith, john", "type": "person", "data_source": "il_sos"},
		"A1": {"label": "1 main st", "type": "address"}
	}
}`

const fileB = `{
	"adjacency": {
		"N1": {"A1": {"0": {"type": "agent"}}},
		"A1": {"N1": {"0": {"type": "agent"}}}
	},
	"node_attrs": {
		"N1": {"label": "Smith, John Q", "type": "person", "alias_ids": ["N9", "N1"], "merge_data": {"N9": {"label": "SMITH, J"}}},
		"A1": {"label": "1 MAIN STREET", "type": "address", "zip": "60601"}
	}
}`

func TestDecode(t *testing.T) {
	g, err := Decode(strings.NewReader(fileA))
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.EdgeCount(), "undirected edges are read once")
	assert.True(t, g.HasEdge("LLC1", "N1", "agent"))
	assert.True(t, g.HasEdge("N1", "LLC1", "manager"))

	llc1, _ := g.Node("LLC1")
	assert.Equal(t, "ACME LLC", llc1.Label, "labels are uppercased")
	assert.Equal(t, "il_sos", llc1.DataSource, "legacy source is accepted")
	assert.Equal(t, map[string]any{"file_number": "LLC1"}, llc1.Attributes)

	n1, _ := g.Node("N1")
	assert.Equal(t, "SMITH, JOHN", n1.Label)
}

func TestLoad_ComposesIntoOpenGraph(t *testing.T) {
	t.Run("into an empty graph", func(t *testing.T) {
		g := graph.New()
		require.NoError(t, Load(strings.NewReader(fileA), g))
		require.NoError(t, Load(strings.NewReader(fileB), g))
		assertUnion(t, g)
	})

	t.Run("into a populated graph", func(t *testing.T) {
		g := graph.New()
		g.AddNode(graph.Node{ID: "LLC7", Label: "WIDGET INC", Type: "company"})
		g.AddEdge("LLC7", "N1", "president", nil)

		require.NoError(t, Load(strings.NewReader(fileA), g))
		require.NoError(t, Load(strings.NewReader(fileB), g))
		assertUnion(t, g)
		assert.True(t, g.HasEdge("LLC7", "N1", "president"))
		assert.Equal(t, 4, g.EdgeCount())
	})

	t.Run("loading the same file twice adds nothing", func(t *testing.T) {
		g := graph.New()
		require.NoError(t, Load(strings.NewReader(fileA), g))
		require.NoError(t, Load(strings.NewReader(fileA), g))
		assert.Equal(t, 3, g.Len())
		assert.Equal(t, 2, g.EdgeCount())
	})
}

func assertUnion(t *testing.T, g *graph.Graph) {
	t.Helper()
	n1, ok := g.Node("N1")
	require.True(t, ok)
	assert.Equal(t, "SMITH, JOHN Q", n1.Label, "second file wins")
	assert.Equal(t, "il_sos", n1.DataSource, "fields the second file lacks are kept")
	assert.Equal(t, []string{"N1", "N9"}, n1.AliasIDs)
	assert.Equal(t, "SMITH, J", n1.MergeData["N9"]["label"])

	a1, _ := g.Node("A1")
	assert.Equal(t, "1 MAIN STREET", a1.Label)
	assert.Equal(t, "60601", a1.Attributes["zip"])

	assert.True(t, g.HasEdge("N1", "A1", "agent"))
	holder, ok := g.Resolve("N9")
	require.True(t, ok)
	assert.Equal(t, "N1", holder)
}

func TestDecode_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{name: "not json", doc: `{"adjacency":`},
		{name: "not an object", doc: `[1, 2]`},
		{name: "missing adjacency", doc: `{"node_attrs": {}}`},
		{name: "missing node_attrs", doc: `{"adjacency": {}}`},
		{name: "adjacency is a list", doc: `{"adjacency": [], "node_attrs": {}}`, path: "adjacency"},
		{name: "edge attrs are not an object", doc: `{"adjacency": {"A": {"B": {"0": 5}}}, "node_attrs": {}}`},
		{name: "label is not a string", doc: `{"adjacency": {}, "node_attrs": {"A": {"label": 5}}}`, path: "node_attrs.A.label"},
		{name: "alias ids are not strings", doc: `{"adjacency": {}, "node_attrs": {"A": {"alias_ids": [1]}}}`, path: "node_attrs.A.alias_ids[0]"},
		{name: "merge data is not an object", doc: `{"adjacency": {}, "node_attrs": {"A": {"merge_data": "x"}}}`, path: "node_attrs.A.merge_data"},
		{name: "edge type is not a string", doc: `{"adjacency": {"A": {"B": {"0": {"type": 1}}}}, "node_attrs": {}}`, path: "adjacency.A.B.0.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			if tt.path != "" {
				assert.Equal(t, tt.path, schemaErr.Path)
			}
		})
	}
}

func TestLoad_FailureLeavesGraphUnchanged(t *testing.T) {
	g := graph.New()
	require.NoError(t, Load(strings.NewReader(fileA), g))

	bad := `{"adjacency": {"X": {"Y": {"0": {"type": "agent"}}}}, "node_attrs": {"X": {"label": ["no"]}}}`
	err := Load(strings.NewReader(bad), g)
	require.Error(t, err)
	assert.Equal(t, 3, g.Len())
	assert.False(t, g.HasNode("X"))
}

func TestEncode(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "LLC1", Label: "ACME LLC", Type: "company", DataSource: "il_sos"})
	g.AddNode(graph.Node{ID: "N1", Label: "SMITH, JOHN", Type: "person"})
	g.AddNode(graph.Node{ID: "A1", Label: "1 MAIN ST", Type: "address"})
	g.AddEdge("N1", "LLC1", "agent", nil)
	g.AddEdge("LLC1", "N1", "manager", map[string]any{"since": "2001"})
	g.AddEdge("A1", "A1", "self", nil)

	doc := Encode(g)

	assert.Equal(t, map[string]map[string]any{
		"0": {"type": "agent"},
		"1": {"type": "manager", "since": "2001"},
	}, doc.Adjacency["N1"]["LLC1"])
	assert.Equal(t, doc.Adjacency["N1"]["LLC1"], doc.Adjacency["LLC1"]["N1"])
	assert.Len(t, doc.Adjacency["A1"]["A1"], 1)
	assert.Equal(t, "il_sos", doc.NodeAttrs["LLC1"]["data_source"])

	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, g))

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
		assert.Contains(t, raw, "adjacency")
		assert.Contains(t, raw, "node_attrs")

		back, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, g.Len(), back.Len())
		assert.Equal(t, g.EdgeCount(), back.EdgeCount())
		assert.True(t, back.HasEdge("LLC1", "N1", "manager"))
		n, _ := back.Node("LLC1")
		assert.Equal(t, "ACME LLC", n.Label)
	})
}
