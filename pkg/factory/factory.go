// Package factory turns entity records into graph fragments using declarative schema files.
package factory

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Ramsey-B/bramble/pkg/fingerprint"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalizers"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Schema categories, applied in this order
var Categories = []string{"company", "name", "address", "links", "extra"}

//go:embed schemas/*.yaml
var defaultSchemas embed.FS

// Factory holds every factory set loaded from the schema files
type Factory struct {
	sets []FactorySet
}

// New builds a factory from already-parsed schemas after validating them
func New(schemas ...Schema) (*Factory, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("normalizer", func(fl validator.FieldLevel) bool {
		_, ok := normalizers.Get(fl.Field().String())
		return ok
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(schemas, func(i, j int) bool {
		return categoryRank(schemas[i].Category) < categoryRank(schemas[j].Category)
	})

	f := &Factory{}
	for _, s := range schemas {
		if err := v.Struct(s); err != nil {
			return nil, fmt.Errorf("invalid %s schema: %w", s.Category, err)
		}
		f.sets = append(f.sets, s.Sets...)
	}
	return f, nil
}

func categoryRank(category string) int {
	for i, c := range Categories {
		if c == category {
			return i
		}
	}
	return len(Categories)
}

// Default returns the factory built from the embedded schema set
func Default() (*Factory, error) {
	sub, err := fs.Sub(defaultSchemas, "schemas")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// Load reads every .yaml, .yml and .json schema file in dir
func Load(dir string) (*Factory, error) {
	if dir == "" {
		return Default()
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads every schema file at the root of fsys
func LoadFS(fsys fs.FS) (*Factory, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var schemas []Schema
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		schema, err := ParseSchema(strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())), data)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return New(schemas...)
}

// ParseSchema decodes one schema file. JSON files decode through the YAML parser.
func ParseSchema(category string, data []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("failed to parse %s schema: %w", category, err)
	}
	schema.Category = category
	return schema, nil
}

// Sets returns the loaded factory sets in application order
func (f *Factory) Sets() []FactorySet {
	return append([]FactorySet(nil), f.sets...)
}

// MakeGraphs builds one graph from the records using every record-view set.
// A non-empty dataSource restricts the run to the sets of that source.
func (f *Factory) MakeGraphs(records []models.EntityRecord, dataSource string) *graph.Graph {
	g := graph.New()
	for _, r := range records {
		for _, set := range f.sets {
			if set.View == ViewRow || (dataSource != "" && set.DataSource != dataSource) {
				continue
			}
			view, ok := LookupView(set.View)
			if !ok {
				continue
			}
			row, ok := view(r)
			if !ok {
				continue
			}
			apply(g, set, row)
		}
	}
	return g
}

// MakeGraphFromRows builds a graph from already-projected rows using the row-view sets
func (f *Factory) MakeGraphFromRows(rows []map[string]any, dataSource string) *graph.Graph {
	g := graph.New()
	for _, row := range rows {
		for _, set := range f.sets {
			if set.View != ViewRow || (dataSource != "" && set.DataSource != dataSource) {
				continue
			}
			apply(g, set, row)
		}
	}
	return g
}

func apply(g *graph.Graph, set FactorySet, row map[string]any) {
	for _, nf := range set.Nodes {
		makeNode(g, set, nf, row)
	}
	for _, lf := range set.Links {
		makeLink(g, lf, row)
	}
}

func makeNode(g *graph.Graph, set FactorySet, nf NodeFactory, row map[string]any) {
	id, ok := stringField(row, nf.IDField)
	if !ok {
		return
	}
	labelField := nf.LabelField
	if labelField == "" {
		labelField = nf.IDField
	}
	label, _ := stringField(row, labelField)
	label = normalizers.ApplyChain(label, nf.Normalize...)
	nodeType, _ := nf.Type.Resolve(row)
	source := nf.Source
	if source == "" {
		source = set.DataSource
	}

	n := graph.Node{ID: id, Label: label, Type: nodeType, DataSource: source}
	if attrs := pick(row, nf.Attr); len(attrs) > 0 {
		n.Attributes = attrs
	}
	g.AddNode(n)
}

func makeLink(g *graph.Graph, lf LinkFactory, row map[string]any) {
	if lf.excluded(row) {
		return
	}
	u, ok := stringField(row, lf.SourceField)
	if !ok {
		return
	}
	v, ok := stringField(row, lf.TargetField)
	if !ok {
		return
	}
	edgeType, _ := lf.Type.Resolve(row)
	attrs := pick(row, lf.Attr)
	if len(attrs) == 0 {
		attrs = nil
	}
	if hasLink(g, u, v, edgeType, attrs) {
		return
	}
	g.AddEdge(u, v, edgeType, attrs)
}

// hasLink reports whether an edge with the same type and attributes already joins u and v
func hasLink(g *graph.Graph, u, v, edgeType string, attrs map[string]any) bool {
	want := fingerprint.Attributes(edgeType, attrs)
	for _, e := range g.IncidentEdges(u) {
		if e.Other(u) != v {
			continue
		}
		existing := e.Attributes
		if len(existing) == 0 {
			existing = nil
		}
		if fingerprint.Attributes(e.Type, existing) == want {
			return true
		}
	}
	return false
}

func pick(row map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if v, ok := row[field]; ok && v != nil {
			out[field] = v
		}
	}
	return out
}
