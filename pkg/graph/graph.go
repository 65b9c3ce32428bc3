// Package graph is the in-memory entity multigraph. Every edge endpoint resolves to a node:
// AddEdge creates missing endpoints as stubs and RemoveNodes drops incident edges.
package graph

import (
	"encoding/json"
	"maps"
	"sort"
)

// Graph is an undirected multigraph with an incident-edge index.
// A Graph is not safe for concurrent use; the owning workspace serializes access.
type Graph struct {
	nodes    map[string]*Node
	order    []string
	edges    map[int]*Edge
	nextEdge int
	incident map[string]map[int]struct{}
	// folded id -> current survivor
	aliases map[string]string
}

// New returns an empty graph
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[int]*Edge),
		incident: make(map[string]map[int]struct{}),
		aliases:  make(map[string]string),
	}
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// HasNode reports whether id is a node of the graph
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Resolve returns the node currently holding id: the id itself, or the survivor it was folded into
func (g *Graph) Resolve(id string) (string, bool) {
	if _, ok := g.nodes[id]; ok {
		return id, true
	}
	if survivor, ok := g.aliases[id]; ok {
		if _, ok := g.nodes[survivor]; ok {
			return survivor, true
		}
	}
	return id, false
}

// AddNode inserts a node, or merges it into the existing node with the same id
// (fields the new node defines win, aliases union).
func (g *Graph) AddNode(n Node) {
	if n.ID == "" {
		return
	}
	if existing, ok := g.nodes[n.ID]; ok {
		existing.absorb(n)
		g.indexAliases(existing)
		return
	}
	c := n.clone()
	g.nodes[n.ID] = &c
	g.order = append(g.order, n.ID)
	g.incident[n.ID] = make(map[int]struct{})
	g.indexAliases(&c)
}

// UpdateNode applies fn to the stored node. The id cannot be changed.
func (g *Graph) UpdateNode(id string, fn func(*Node)) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	fn(n)
	n.ID = id
	return true
}

func (g *Graph) indexAliases(n *Node) {
	for _, alias := range n.AliasIDs {
		if alias == n.ID {
			continue
		}
		if _, isNode := g.nodes[alias]; isNode {
			continue
		}
		g.aliases[alias] = n.ID
	}
}

// AddEdge adds an edge between u and v and returns its id. Missing endpoints become stubs.
func (g *Graph) AddEdge(u, v, edgeType string, attrs map[string]any) int {
	if !g.HasNode(u) {
		g.AddNode(Node{ID: u})
	}
	if !g.HasNode(v) {
		g.AddNode(Node{ID: v})
	}
	id := g.nextEdge
	g.nextEdge++
	g.edges[id] = &Edge{ID: id, Source: u, Target: v, Type: edgeType, Attributes: maps.Clone(attrs)}
	g.incident[u][id] = struct{}{}
	g.incident[v][id] = struct{}{}
	return id
}

// HasEdge reports whether an edge of the given type already joins u and v
func (g *Graph) HasEdge(u, v, edgeType string) bool {
	for eid := range g.incident[u] {
		e := g.edges[eid]
		if e.Other(u) == v && e.Type == edgeType {
			return true
		}
	}
	return false
}

// RemoveEdge deletes an edge by id
func (g *Graph) RemoveEdge(id int) {
	e, ok := g.edges[id]
	if !ok {
		return
	}
	delete(g.incident[e.Source], id)
	delete(g.incident[e.Target], id)
	delete(g.edges, id)
}

// RemoveNodes deletes the given nodes and their incident edges. Absent ids are ignored.
func (g *Graph) RemoveNodes(ids ...string) int {
	removed := 0
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for eid := range g.incident[id] {
			g.RemoveEdge(eid)
		}
		for _, alias := range n.AliasIDs {
			if g.aliases[alias] == id {
				delete(g.aliases, alias)
			}
		}
		delete(g.incident, id)
		delete(g.nodes, id)
		removed++
	}
	if removed > 0 {
		g.compactOrder()
	}
	return removed
}

func (g *Graph) compactOrder() {
	kept := g.order[:0]
	for _, id := range g.order {
		if _, ok := g.nodes[id]; ok {
			kept = append(kept, id)
		}
	}
	g.order = kept
}

// Nodes returns copies of every node in insertion order
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// NodeIDs returns every node id in insertion order
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Edges returns copies of every edge ordered by edge id
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, id := range g.edgeIDs() {
		out = append(out, g.edges[id].clone())
	}
	return out
}

func (g *Graph) edgeIDs() []int {
	ids := make([]int, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (g *Graph) incidentIDs(id string) []int {
	ids := make([]int, 0, len(g.incident[id]))
	for eid := range g.incident[id] {
		ids = append(ids, eid)
	}
	sort.Ints(ids)
	return ids
}

// IncidentEdges returns copies of the edges touching id, ordered by edge id
func (g *Graph) IncidentEdges(id string) []Edge {
	var out []Edge
	for _, eid := range g.incidentIDs(id) {
		out = append(out, g.edges[eid].clone())
	}
	return out
}

// Neighbors returns the distinct nodes adjacent to id, excluding id itself
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, eid := range g.incidentIDs(id) {
		other := g.edges[eid].Other(id)
		if other == id {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}

// ConnectedNodes returns every node reachable from ids within depth hops, including the starting nodes.
// A depth of 0 returns the whole connected component. Absent ids are ignored.
func (g *Graph) ConnectedNodes(ids []string, depth int) []string {
	visited := make(map[string]struct{})
	var out []string
	type item struct {
		id    string
		depth int
	}
	var queue []item
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		out = append(out, id)
		queue = append(queue, item{id: id})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth > 0 && cur.depth >= depth {
			continue
		}
		for _, next := range g.Neighbors(cur.id) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			out = append(out, next)
			queue = append(queue, item{id: next, depth: cur.depth + 1})
		}
	}
	return out
}

// Unlabeled returns the ids of stub nodes in insertion order
func (g *Graph) Unlabeled() []string {
	var out []string
	for _, id := range g.order {
		if g.nodes[id].IsStub() {
			out = append(out, id)
		}
	}
	return out
}

// AliasIDs expands each id to the alias set of the node holding it (or the id itself when absent)
func (g *Graph) AliasIDs(ids []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		holder, ok := g.Resolve(id)
		if !ok {
			add(id)
			continue
		}
		for _, alias := range g.nodes[holder].Aliases() {
			add(alias)
		}
	}
	return out
}

// Clone returns a deep copy that shares nothing with g
func (g *Graph) Clone() *Graph {
	c := New()
	for _, id := range g.order {
		n := g.nodes[id].clone()
		c.nodes[id] = &n
		c.incident[id] = make(map[int]struct{}, len(g.incident[id]))
		for eid := range g.incident[id] {
			c.incident[id][eid] = struct{}{}
		}
	}
	c.order = append(c.order, g.order...)
	for id, e := range g.edges {
		ec := e.clone()
		c.edges[id] = &ec
	}
	c.nextEdge = g.nextEdge
	maps.Copy(c.aliases, g.aliases)
	return c
}

// InducedSubgraph returns a new graph holding only ids and the edges between them. Absent ids are ignored.
func (g *Graph) InducedSubgraph(ids []string) *Graph {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			keep[id] = struct{}{}
		}
	}
	sub := New()
	for _, id := range g.order {
		if _, ok := keep[id]; ok {
			sub.AddNode(*g.nodes[id])
		}
	}
	for _, eid := range g.edgeIDs() {
		e := g.edges[eid]
		_, okU := keep[e.Source]
		_, okV := keep[e.Target]
		if okU && okV {
			sub.AddEdge(e.Source, e.Target, e.Type, e.Attributes)
		}
	}
	return sub
}

// DeduplicateEdges collapses parallel edges with identical type and attributes, keeping the first.
// It returns the number of edges removed.
func (g *Graph) DeduplicateEdges() int {
	seen := make(map[string]struct{})
	removed := 0
	for _, eid := range g.edgeIDs() {
		fp := g.edges[eid].Fingerprint()
		if _, ok := seen[fp]; ok {
			g.RemoveEdge(eid)
			removed++
			continue
		}
		seen[fp] = struct{}{}
	}
	return removed
}

// Merge composes other into g in place. See Compose.
func (g *Graph) Merge(other *Graph) {
	if other == nil {
		return
	}
	// ids of other mapped onto their holder in g
	mapped := make(map[string]string, len(other.nodes))

	for _, id := range other.order {
		n := *other.nodes[id]
		holder, ok := g.Resolve(id)
		if ok && holder != id {
			// other still carries a node g has since folded away
			survivor := g.nodes[holder]
			survivor.fillEmpty(n)
			g.fold(survivor, n)
			mapped[id] = holder
			continue
		}
		g.AddNode(n)
		mapped[id] = id
	}

	for alias, survivor := range other.aliases {
		if _, isNode := g.nodes[alias]; isNode {
			continue
		}
		if _, known := g.aliases[alias]; known {
			continue
		}
		if target, ok := mapped[survivor]; ok {
			g.aliases[alias] = target
		}
	}

	counts := make(map[string]int, len(g.edges))
	for _, e := range g.edges {
		counts[e.Fingerprint()]++
	}
	for _, eid := range other.edgeIDs() {
		e := *other.edges[eid]
		e.Source = mapped[e.Source]
		e.Target = mapped[e.Target]
		fp := e.Fingerprint()
		if counts[fp] > 0 {
			counts[fp]--
			continue
		}
		g.AddEdge(e.Source, e.Target, e.Type, e.Attributes)
	}
}

// Compose returns the union of a and b. On id collisions the fields b defines win, alias sets
// union and merge data maps merge. Edges of b are added only beyond the occurrences already in a,
// so composing a graph with itself yields an identical graph.
func Compose(a, b *Graph) *Graph {
	out := a.Clone()
	out.Merge(b)
	return out
}

// Combine merges the nodes holding ids into one survivor and returns its id.
// Survivors prefer nodes from canonicalSource, then the lexicographically smallest id.
// Edges of merged-away nodes move to the survivor. Fewer than two distinct holders is a no-op.
func (g *Graph) Combine(ids []string, canonicalSource string) (string, bool) {
	holders := g.holders(ids)
	if len(holders) == 0 {
		return "", false
	}
	if len(holders) == 1 {
		return holders[0].ID, false
	}

	sort.Slice(holders, func(i, j int) bool {
		ci := holders[i].DataSource == canonicalSource
		cj := holders[j].DataSource == canonicalSource
		if ci != cj {
			return ci
		}
		return holders[i].ID < holders[j].ID
	})
	return g.absorbInto(holders[0], holders[1:]), true
}

// holders returns the distinct nodes holding ids, in the order first seen
func (g *Graph) holders(ids []string) []*Node {
	var holders []*Node
	seen := make(map[string]struct{})
	for _, id := range ids {
		holder, ok := g.Resolve(id)
		if !ok {
			continue
		}
		if _, dup := seen[holder]; dup {
			continue
		}
		seen[holder] = struct{}{}
		holders = append(holders, g.nodes[holder])
	}
	return holders
}

func (g *Graph) absorbInto(survivor *Node, others []*Node) string {
	for _, other := range others {
		for _, eid := range g.incidentIDs(other.ID) {
			e := g.edges[eid]
			if e.Source == other.ID {
				e.Source = survivor.ID
			}
			if e.Target == other.ID {
				e.Target = survivor.ID
			}
			g.incident[survivor.ID][eid] = struct{}{}
		}
		delete(g.incident, other.ID)
		delete(g.nodes, other.ID)

		survivor.fillEmpty(*other)
		g.fold(survivor, *other)
	}
	g.compactOrder()
	return survivor.ID
}

// fold records folded as absorbed by survivor without changing the survivor's own attributes
func (g *Graph) fold(survivor *Node, folded Node) {
	if survivor.MergeData == nil {
		survivor.MergeData = make(map[string]map[string]any)
	}
	for k, v := range folded.MergeData {
		survivor.MergeData[k] = maps.Clone(v)
	}
	survivor.MergeData[folded.ID] = folded.Snapshot()
	survivor.AliasIDs = unionSorted(survivor.Aliases(), folded.Aliases())
	for _, alias := range survivor.AliasIDs {
		if alias != survivor.ID {
			g.aliases[alias] = survivor.ID
		}
	}
}

type graphJSON struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON renders the graph as ordered node and edge lists
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{Nodes: g.Nodes(), Edges: g.Edges()})
}
