package graph

import (
	"maps"
	"sort"
)

// Node is one vertex of the entity graph. A node without a label is a stub.
type Node struct {
	ID         string                    `json:"id"`
	Label      string                    `json:"label,omitempty"`
	Type       string                    `json:"type,omitempty"`
	DataSource string                    `json:"data_source,omitempty"`
	Attributes map[string]any            `json:"attributes,omitempty"`
	AliasIDs   []string                  `json:"alias_ids,omitempty"`
	MergeData  map[string]map[string]any `json:"merge_data,omitempty"`
}

// IsStub reports whether the node has no label yet
func (n Node) IsStub() bool {
	return n.Label == ""
}

// Snapshot returns the node's own attribute set, as recorded in a survivor's merge data
func (n Node) Snapshot() map[string]any {
	out := make(map[string]any, len(n.Attributes)+3)
	maps.Copy(out, n.Attributes)
	out["label"] = n.Label
	out["type"] = n.Type
	out["data_source"] = n.DataSource
	return out
}

// Aliases returns the node's alias set, or just its id when it has never absorbed another node
func (n Node) Aliases() []string {
	if len(n.AliasIDs) == 0 {
		return []string{n.ID}
	}
	return append([]string(nil), n.AliasIDs...)
}

func (n Node) clone() Node {
	c := n
	c.Attributes = maps.Clone(n.Attributes)
	c.AliasIDs = append([]string(nil), n.AliasIDs...)
	if len(c.AliasIDs) == 0 {
		c.AliasIDs = nil
	}
	if n.MergeData != nil {
		c.MergeData = make(map[string]map[string]any, len(n.MergeData))
		for k, v := range n.MergeData {
			c.MergeData[k] = maps.Clone(v)
		}
	}
	return c
}

// absorb merges other into n: fields other defines win, alias sets union, merge data maps merge
func (n *Node) absorb(other Node) {
	if other.Label != "" {
		n.Label = other.Label
	}
	if other.Type != "" {
		n.Type = other.Type
	}
	if other.DataSource != "" {
		n.DataSource = other.DataSource
	}
	if len(other.Attributes) > 0 {
		if n.Attributes == nil {
			n.Attributes = make(map[string]any, len(other.Attributes))
		}
		maps.Copy(n.Attributes, other.Attributes)
	}
	if len(other.AliasIDs) > 0 {
		n.AliasIDs = unionSorted(n.Aliases(), other.AliasIDs)
	}
	for k, v := range other.MergeData {
		if n.MergeData == nil {
			n.MergeData = make(map[string]map[string]any)
		}
		n.MergeData[k] = maps.Clone(v)
	}
}

// fillEmpty copies the fields n lacks from other, leaving everything n already has
func (n *Node) fillEmpty(other Node) {
	if n.Label == "" {
		n.Label = other.Label
	}
	if n.Type == "" {
		n.Type = other.Type
	}
	if n.DataSource == "" {
		n.DataSource = other.DataSource
	}
}

func unionSorted(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, id := range list {
			if id != "" {
				set[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
