// Package maintenance keeps a graph clean between pipeline stages: it drops placeholder
// nodes, marks dissolved companies inactive, and resolves stub nodes.
package maintenance

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// DefaultMarkers are label substrings of placeholder and administrative registry entries.
// Matching is case-sensitive and the surrounding spaces are significant.
var DefaultMarkers = []string{
	"INVOLUNTARY",
	"VACANT",
	"VACATED",
	"SOLE OFFICER",
	"None",
	"SAME ",
	"REVOKED ",
	" DISSOLUTION",
	"UNACCEPTABLE ",
	"MERGED ",
	"WITHDRAWN",
}

// DefaultInactiveMarkers mark an excluded node whose neighboring companies are no longer active
var DefaultInactiveMarkers = []string{" DISSOLUTION", "REVOKED "}

// Policy decides which labels are placeholders
type Policy struct {
	Markers         []string
	InactiveMarkers []string
}

// DefaultPolicy returns the registry exclusion policy
func DefaultPolicy() Policy {
	return Policy{
		Markers:         append([]string(nil), DefaultMarkers...),
		InactiveMarkers: append([]string(nil), DefaultInactiveMarkers...),
	}
}

// Excluded reports whether label contains any exclusion marker
func (p Policy) Excluded(label string) bool {
	return containsAny(label, p.Markers)
}

// MarksInactive reports whether an excluded label retires its neighboring companies
func (p Policy) MarksInactive(label string) bool {
	return containsAny(label, p.InactiveMarkers)
}

func containsAny(label string, markers []string) bool {
	if label == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(label, m) {
			return true
		}
	}
	return false
}

// FilterReport summarizes one exclusion pass
type FilterReport struct {
	Removed []string `json:"removed"`
	Retyped []string `json:"retyped"`
}

// FilterExcluded retypes the company neighbors of dissolution and revocation entries as
// inactive, then removes every excluded node.
func FilterExcluded(ctx context.Context, g *graph.Graph, policy Policy, logger ectologger.Logger) FilterReport {
	_, span := tracing.StartSpan(ctx, "maintenance.FilterExcluded")
	defer span.End()

	var report FilterReport
	for _, n := range g.Nodes() {
		if !policy.Excluded(n.Label) {
			continue
		}
		report.Removed = append(report.Removed, n.ID)
		if !policy.MarksInactive(n.Label) {
			continue
		}
		for _, neighbor := range g.Neighbors(n.ID) {
			g.UpdateNode(neighbor, func(nb *graph.Node) {
				if nb.Type == models.NodeTypeCompany {
					nb.Type = models.NodeTypeInactiveCompany
					report.Retyped = append(report.Retyped, nb.ID)
				}
			})
		}
	}

	g.RemoveNodes(report.Removed...)
	metrics.ExcludedNodesTotal.Add(float64(len(report.Removed)))
	if len(report.Removed) > 0 {
		logger.WithContext(ctx).WithFields(map[string]any{
			"removed": len(report.Removed),
			"retyped": len(report.Retyped),
		}).Info("Removed placeholder nodes")
	}
	return report
}
