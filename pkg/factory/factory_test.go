package factory

import (
	"testing"
	"testing/fstest"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fk(label string, value int64) *models.ForeignKey {
	return &models.ForeignKey{Label: label, Value: value}
}

func TestDefault_MakeGraphs(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	recs := []models.EntityRecord{
		{ID: 1, FileNumber: "LLC1", Type: models.RoleCompany, Name: fk("ACME LLC", 10), Address: fk("1 MAIN ST", 500)},
		{ID: 2, FileNumber: "LLC1", Type: models.RoleAgent, Name: fk("SMITH, JOHN", 11), Address: fk("2 OAK AVE", 501)},
		{ID: 3, FileNumber: "LLC1", Type: models.RoleAgent, Name: fk("SMITH, JOHN", 11)},
		{ID: 4, FileNumber: "LLC2", Type: models.Role("member company"), Name: fk("HOLDCO INC", 12)},
		{ID: 5, FileNumber: "LLC3", Type: models.RoleManager, Name: fk("SAME", 13), Address: fk("3 ELM ST", 502)},
	}
	g := f.MakeGraphs(recs, "")

	company, ok := g.Node("LLC1")
	require.True(t, ok)
	assert.Equal(t, "ACME LLC", company.Label)
	assert.Equal(t, models.NodeTypeCompany, company.Type)
	assert.Equal(t, models.SourceRegistry, company.DataSource)

	person, ok := g.Node("N11")
	require.True(t, ok)
	assert.Equal(t, models.NodeTypePerson, person.Type)
	assert.True(t, g.HasEdge("N11", "LLC1", "agent"))
	assert.True(t, g.HasEdge("N11", "A501", "agent"))
	assert.True(t, g.HasEdge("LLC1", "A500", "company"))

	owner, ok := g.Node("C4")
	require.True(t, ok)
	assert.Equal(t, "HOLDCO INC", owner.Label)
	assert.True(t, g.HasEdge("C4", "LLC2", "member company"))

	stub, ok := g.Node("LLC2")
	require.True(t, ok)
	assert.True(t, stub.IsStub(), "link endpoints that are not records become stubs")

	assert.False(t, g.HasNode("N13"), "sentinel names are not graphed")
	assert.False(t, g.HasNode("A502"), "sentinel records own no address")
	assert.False(t, g.HasNode("LLC3"))

	agentEdges := 0
	for _, e := range g.IncidentEdges("N11") {
		if e.Other("N11") == "LLC1" {
			agentEdges++
		}
	}
	assert.Equal(t, 1, agentEdges, "no duplicate typed edges")
}

func TestMakeGraphs_DataSourceFilter(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	recs := []models.EntityRecord{{ID: 1, FileNumber: "LLC1", Type: models.RoleCompany, Name: fk("ACME LLC", 10)}}
	assert.Equal(t, 0, f.MakeGraphs(recs, "elsewhere").Len())
	assert.Equal(t, 1, f.MakeGraphs(recs, models.SourceRegistry).Len())
}

func TestMakeGraphFromRows(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	g := f.MakeGraphFromRows([]map[string]any{{
		"result_id":       "ctr-100-2",
		"node_id":         "LLC1",
		"label":           "ACME LLC",
		"contract_number": "100",
		"revision_number": "2",
	}}, "")

	n, ok := g.Node("ctr-100-2")
	require.True(t, ok)
	assert.Equal(t, models.NodeTypeContract, n.Type)
	assert.Equal(t, models.SourceContracts, n.DataSource)
	assert.Equal(t, "100", n.Attributes["contract_number"])
	assert.True(t, g.HasEdge("LLC1", "ctr-100-2", "contract"))
}

func TestLoadFS(t *testing.T) {
	t.Run("custom schema changes graph shape", func(t *testing.T) {
		fsys := fstest.MapFS{
			"name.json": {Data: []byte(`{"sets": [{"name": "people", "data_source": "il_sos", "view": "name", ` +
				`"nodes": [{"id_field": "id", "type": {"type": "field", "value": "role"}}], ` +
				`"links": [{"source_field": "id", "target_field": "target", "type": {"type": "literal", "value": "officer"}}]}]}`)},
			"README.md": {Data: []byte("ignored")},
		}
		f, err := LoadFS(fsys)
		require.NoError(t, err)

		g := f.MakeGraphs([]models.EntityRecord{{ID: 2, FileNumber: "LLC1", Type: models.RoleAgent, Name: fk("DOE, JANE", 7)}}, "")
		n, ok := g.Node("N7")
		require.True(t, ok)
		assert.Equal(t, "N7", n.Label, "label defaults to the id field")
		assert.Equal(t, "agent", n.Type)
		assert.True(t, g.HasEdge("N7", "LLC1", "officer"))
	})

	t.Run("invalid schema fails validation", func(t *testing.T) {
		fsys := fstest.MapFS{
			"name.yaml": {Data: []byte("sets:\n  - name: bad\n    data_source: il_sos\n    view: nowhere\n")},
		}
		_, err := LoadFS(fsys)
		assert.Error(t, err)
	})
}

func TestLinkFactory_Excluded(t *testing.T) {
	lf := LinkFactory{ExcludeField: "label"}
	assert.True(t, lf.excluded(map[string]any{"label": "SAME"}))
	assert.True(t, lf.excluded(map[string]any{"label": "NONE"}))
	assert.False(t, lf.excluded(map[string]any{"label": "SMITH, JOHN"}))

	lf.ExcludeValues = []string{"X"}
	assert.False(t, lf.excluded(map[string]any{"label": "SAME"}))
	assert.True(t, lf.excluded(map[string]any{"label": "X"}))
}

func TestMakeNode_NormalizesLabel(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	g := f.MakeGraphs([]models.EntityRecord{
		{ID: 1, FileNumber: "LLC1", Type: models.RoleCompany, Name: fk("  acme   holdings llc ", 10)},
		{ID: 2, FileNumber: "LLC1", Type: models.RoleAgent, Name: fk("SMITH,   JOHN", 11)},
	}, "")

	company, ok := g.Node("LLC1")
	require.True(t, ok)
	assert.Equal(t, "ACME HOLDINGS LLC", company.Label)

	person, ok := g.Node("N11")
	require.True(t, ok)
	assert.Equal(t, "SMITH, JOHN", person.Label)
}

func TestLoadFS_UnknownNormalizer(t *testing.T) {
	fsys := fstest.MapFS{
		"name.yaml": {Data: []byte("sets:\n  - name: people\n    data_source: il_sos\n    view: name\n" +
			"    nodes:\n      - id_field: id\n        normalize: [uppercase, shout]\n")},
	}
	_, err := LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalizer")
}

func TestMakeLink_AttributesDistinguishEdges(t *testing.T) {
	schema, err := ParseSchema("extra", []byte(`
sets:
  - name: filings
    data_source: filings
    view: row
    links:
      - source_field: from
        target_field: to
        type: {type: literal, value: filed}
        attr: [year]
`))
	require.NoError(t, err)
	f, err := New(schema)
	require.NoError(t, err)

	g := f.MakeGraphFromRows([]map[string]any{
		{"from": "LLC1", "to": "N1", "year": 2020},
		{"from": "LLC1", "to": "N1", "year": 2021},
		{"from": "N1", "to": "LLC1", "year": 2020},
		{"from": "LLC1", "to": "N1"},
		{"from": "LLC1", "to": "N1"},
	}, "")

	years := map[any]int{}
	for _, e := range g.IncidentEdges("LLC1") {
		years[e.Attributes["year"]]++
	}
	assert.Equal(t, map[any]int{2020: 1, 2021: 1, nil: 1}, years, "same type and attributes collapse regardless of direction")
	assert.Equal(t, 3, g.EdgeCount())
}
