package graph

import (
	"maps"

	"github.com/Ramsey-B/bramble/pkg/fingerprint"
)

// Edge is an undirected, typed edge. Parallel edges and self-loops are allowed.
type Edge struct {
	ID         int            `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Fingerprint identifies the edge by endpoints, type and attributes, ignoring endpoint order
func (e Edge) Fingerprint() string {
	return fingerprint.Edge(e.Source, e.Target, e.Type, e.Attributes)
}

// Other returns the endpoint opposite id
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// IsSelfLoop reports whether both endpoints are the same node
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

func (e Edge) clone() Edge {
	c := e
	c.Attributes = maps.Clone(e.Attributes)
	return c
}
