// Package qng reads and writes the persisted graph file: an adjacency map of keyed
// multi-edges plus a node attribute map.
package qng

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"strconv"
	"strings"

	"github.com/Ramsey-B/bramble/pkg/graph"
)

// Node attribute keys with a dedicated graph.Node field
const (
	AttrLabel      = "label"
	AttrType       = "type"
	AttrDataSource = "data_source"
	AttrSource     = "source"
	AttrAliasIDs   = "alias_ids"
	AttrMergeData  = "merge_data"
)

// EdgeAttrType is the edge attribute holding the edge type
const EdgeAttrType = "type"

// Adjacency maps node id to neighbor id to edge key to edge attributes
type Adjacency map[string]map[string]map[string]map[string]any

// Document is the persisted graph file
type Document struct {
	Adjacency Adjacency                 `json:"adjacency"`
	NodeAttrs map[string]map[string]any `json:"node_attrs"`
}

// SchemaError reports a document that does not match the file schema. Nothing is loaded.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid graph file: %s", e.Reason)
	}
	return fmt.Sprintf("invalid graph file at %s: %s", e.Path, e.Reason)
}

func schemaErr(path, format string, args ...any) error {
	return &SchemaError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Encode converts g into a document. Each undirected edge appears under both endpoints with
// the same key. Keys number the parallel edges of a pair from 0.
func Encode(g *graph.Graph) Document {
	doc := Document{
		Adjacency: make(Adjacency, g.Len()),
		NodeAttrs: make(map[string]map[string]any, g.Len()),
	}
	for _, n := range g.Nodes() {
		doc.NodeAttrs[n.ID] = nodeAttrs(n)
		doc.Adjacency[n.ID] = make(map[string]map[string]map[string]any)
	}

	next := make(map[[2]string]int)
	for _, e := range g.Edges() {
		pair := [2]string{e.Source, e.Target}
		if pair[1] < pair[0] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		key := strconv.Itoa(next[pair])
		next[pair]++

		attrs := edgeAttrs(e)
		put(doc.Adjacency, e.Source, e.Target, key, attrs)
		if !e.IsSelfLoop() {
			put(doc.Adjacency, e.Target, e.Source, key, maps.Clone(attrs))
		}
	}
	return doc
}

func put(adj Adjacency, u, v, key string, attrs map[string]any) {
	if adj[u] == nil {
		adj[u] = make(map[string]map[string]map[string]any)
	}
	if adj[u][v] == nil {
		adj[u][v] = make(map[string]map[string]any)
	}
	adj[u][v][key] = attrs
}

func nodeAttrs(n graph.Node) map[string]any {
	out := make(map[string]any, len(n.Attributes)+5)
	maps.Copy(out, n.Attributes)
	if n.Label != "" {
		out[AttrLabel] = n.Label
	}
	if n.Type != "" {
		out[AttrType] = n.Type
	}
	if n.DataSource != "" {
		out[AttrDataSource] = n.DataSource
	}
	if len(n.AliasIDs) > 0 {
		out[AttrAliasIDs] = n.AliasIDs
	}
	if len(n.MergeData) > 0 {
		out[AttrMergeData] = n.MergeData
	}
	return out
}

func edgeAttrs(e graph.Edge) map[string]any {
	out := make(map[string]any, len(e.Attributes)+1)
	maps.Copy(out, e.Attributes)
	out[EdgeAttrType] = e.Type
	return out
}

// Write encodes g as JSON to w
func Write(w io.Writer, g *graph.Graph) error {
	return json.NewEncoder(w).Encode(Encode(g))
}

type rawDocument struct {
	Adjacency json.RawMessage `json:"adjacency"`
	NodeAttrs json.RawMessage `json:"node_attrs"`
}

// Decode parses a graph file into a new graph. Every label is uppercased. Any schema
// mismatch returns a *SchemaError.
func Decode(r io.Reader) (*graph.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, jsonSchemaErr("", err)
	}
	if isMissing(raw.Adjacency) {
		return nil, schemaErr("", "missing adjacency")
	}
	if isMissing(raw.NodeAttrs) {
		return nil, schemaErr("", "missing node_attrs")
	}

	var adj Adjacency
	if err := json.Unmarshal(raw.Adjacency, &adj); err != nil {
		return nil, jsonSchemaErr("adjacency", err)
	}
	var attrs map[string]map[string]any
	if err := json.Unmarshal(raw.NodeAttrs, &attrs); err != nil {
		return nil, jsonSchemaErr("node_attrs", err)
	}

	g := graph.New()
	for _, id := range sortedKeys(attrs) {
		n, err := decodeNode(id, attrs[id])
		if err != nil {
			return nil, err
		}
		g.AddNode(n)
	}
	for _, u := range sortedKeys(adj) {
		if !g.HasNode(u) {
			g.AddNode(graph.Node{ID: u})
		}
	}
	if err := decodeEdges(g, adj); err != nil {
		return nil, err
	}
	return g, nil
}

// Load decodes a graph file and composes it into g. On error g is unchanged.
func Load(r io.Reader, g *graph.Graph) error {
	fragment, err := Decode(r)
	if err != nil {
		return err
	}
	g.Merge(fragment)
	return nil
}

func isMissing(data json.RawMessage) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func jsonSchemaErr(path string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if path != "" && field != "" {
			field = path + "." + field
		} else if field == "" {
			field = path
		}
		return schemaErr(field, "expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return schemaErr(path, "%s", err.Error())
}

func decodeNode(id string, attrs map[string]any) (graph.Node, error) {
	path := "node_attrs." + id
	n := graph.Node{ID: id}
	rest := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch k {
		case AttrLabel, AttrType, AttrDataSource, AttrSource:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return n, schemaErr(path+"."+k, "expected string")
			}
			switch k {
			case AttrLabel:
				n.Label = strings.ToUpper(s)
			case AttrType:
				n.Type = s
			case AttrDataSource:
				n.DataSource = s
			case AttrSource:
				if _, modern := attrs[AttrDataSource]; !modern {
					n.DataSource = s
				}
			}
		case AttrAliasIDs:
			ids, err := stringList(path+"."+k, v)
			if err != nil {
				return n, err
			}
			n.AliasIDs = ids
		case AttrMergeData:
			md, err := mergeData(path+"."+k, v)
			if err != nil {
				return n, err
			}
			n.MergeData = md
		default:
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		n.Attributes = rest
	}
	return n, nil
}

func stringList(path string, v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, schemaErr(path, "expected list of strings")
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, schemaErr(fmt.Sprintf("%s[%d]", path, i), "expected string")
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func mergeData(path string, v any) (map[string]map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schemaErr(path, "expected object")
	}
	out := make(map[string]map[string]any, len(m))
	for id, snap := range m {
		attrs, ok := snap.(map[string]any)
		if !ok {
			return nil, schemaErr(path+"."+id, "expected object")
		}
		out[id] = attrs
	}
	return out, nil
}

// decodeEdges adds each undirected edge once. A pair listed under both endpoints is read
// from the first endpoint in sorted order.
func decodeEdges(g *graph.Graph, adj Adjacency) error {
	done := make(map[[2]string]struct{})
	for _, u := range sortedKeys(adj) {
		for _, v := range sortedKeys(adj[u]) {
			pair := [2]string{u, v}
			if v < u {
				pair = [2]string{v, u}
			}
			if _, ok := done[pair]; ok {
				continue
			}
			done[pair] = struct{}{}

			keyed := adj[u][v]
			for _, key := range edgeKeys(keyed) {
				attrs := keyed[key]
				edgeType := ""
				if t, ok := attrs[EdgeAttrType]; ok && t != nil {
					s, ok := t.(string)
					if !ok {
						return schemaErr(fmt.Sprintf("adjacency.%s.%s.%s.type", u, v, key), "expected string")
					}
					edgeType = s
				}
				rest := maps.Clone(attrs)
				delete(rest, EdgeAttrType)
				if len(rest) == 0 {
					rest = nil
				}
				g.AddEdge(u, v, edgeType, rest)
			}
		}
	}
	return nil
}

// edgeKeys orders edge keys numerically, with non-numeric keys after in lexical order
func edgeKeys(keyed map[string]map[string]any) []string {
	keys := sortedKeys(keyed)
	sort.SliceStable(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		if aErr == nil && bErr == nil {
			return a < b
		}
		return aErr == nil && bErr != nil
	})
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
