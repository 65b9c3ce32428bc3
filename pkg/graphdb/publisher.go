package graphdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// NodeLabel is the label every published node carries
const NodeLabel = "Entity"

// Executor runs write transactions. *Client satisfies it.
type Executor interface {
	ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error)
}

// Statement is one parameterized Cypher statement
type Statement struct {
	Cypher string
	Params map[string]any
}

// Publisher replaces a workspace's subgraph in the graph database with the workspace graph
type Publisher struct {
	executor Executor
	logger   ectologger.Logger
}

// NewPublisher creates a graph publisher
func NewPublisher(executor Executor, logger ectologger.Logger) *Publisher {
	return &Publisher{executor: executor, logger: logger}
}

// PublishResult summarizes one publish
type PublishResult struct {
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
}

// Publish writes g as the subgraph of workspaceID in one transaction, replacing what was there
func (p *Publisher) Publish(ctx context.Context, workspaceID string, g *graph.Graph) (PublishResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graphdb.Publisher.Publish")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"workspace_id": workspaceID,
		"nodes":        g.Len(),
		"edges":        g.EdgeCount(),
	})

	statements := Statements(workspaceID, g)
	_, err := p.executor.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			result, err := tx.Run(ctx, st.Cypher, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to publish graph")
		return PublishResult{}, fmt.Errorf("failed to publish graph: %w", err)
	}

	log.Info("Published graph")
	return PublishResult{Nodes: g.Len(), Relationships: g.EdgeCount()}, nil
}

// Statements builds the Cypher that replaces the workspace subgraph: a delete, one node batch,
// and one relationship batch per relationship type in sorted type order.
func Statements(workspaceID string, g *graph.Graph) []Statement {
	statements := []Statement{{
		Cypher: fmt.Sprintf(`
			MATCH (n:%s {workspace_id: $workspace_id})
			DETACH DELETE n
		`, NodeLabel),
		Params: map[string]any{"workspace_id": workspaceID},
	}}

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return statements
	}

	batch := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		batch = append(batch, nodeProps(workspaceID, n))
	}
	statements = append(statements, Statement{
		Cypher: fmt.Sprintf(`
			UNWIND $batch AS props
			MERGE (n:%s {id: props.id, workspace_id: props.workspace_id})
			SET n = props
		`, NodeLabel),
		Params: map[string]any{"batch": batch},
	})

	byType := make(map[string][]map[string]any)
	for _, e := range g.Edges() {
		relType := sanitizeType(e.Type)
		byType[relType] = append(byType[relType], map[string]any{
			"id":      fmt.Sprintf("%s:%d", workspaceID, e.ID),
			"from_id": e.Source,
			"to_id":   e.Target,
			"props":   scalarProps(e.Attributes),
		})
	}
	relTypes := make([]string, 0, len(byType))
	for t := range byType {
		relTypes = append(relTypes, t)
	}
	sort.Strings(relTypes)

	for _, relType := range relTypes {
		statements = append(statements, Statement{
			Cypher: fmt.Sprintf(`
				UNWIND $batch AS data
				MATCH (from:%s {id: data.from_id, workspace_id: $workspace_id})
				MATCH (to:%s {id: data.to_id, workspace_id: $workspace_id})
				MERGE (from)-[r:%s {id: data.id}]->(to)
				SET r += data.props
			`, NodeLabel, NodeLabel, relType),
			Params: map[string]any{"workspace_id": workspaceID, "batch": byType[relType]},
		})
	}
	return statements
}

func nodeProps(workspaceID string, n graph.Node) map[string]any {
	props := scalarProps(n.Attributes)
	props["id"] = n.ID
	props["workspace_id"] = workspaceID
	props["label"] = n.Label
	props["type"] = n.Type
	props["data_source"] = n.DataSource
	if len(n.AliasIDs) > 0 {
		props["alias_ids"] = n.AliasIDs
	}
	if len(n.MergeData) > 0 {
		if b, err := json.Marshal(n.MergeData); err == nil {
			props["merge_data"] = string(b)
		}
	}
	return props
}

// scalarProps keeps property values Bolt can store directly and JSON-encodes the rest
func scalarProps(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.(type) {
		case nil:
		case string, bool, int, int64, float64:
			out[k] = v
		default:
			if b, err := json.Marshal(v); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

// sanitizeType ensures the relationship type is safe for Cypher
func sanitizeType(edgeType string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(edgeType) {
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			b.WriteRune(c)
		case c == ' ' || c == '_' || c == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}
