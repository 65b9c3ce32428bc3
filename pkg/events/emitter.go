// Package events handles event emission for workspace graph changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"
	bramblecontext "github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Publisher publishes graph events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishGraphEvent(ctx context.Context, event *kafka.GraphEvent) error
}

// Emitter handles event emission for bramble. A nil publisher disables emission.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// Enabled reports whether events are published
func (e *Emitter) Enabled() bool {
	return e != nil && e.producer != nil
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, workspaceID string, g *graph.Graph, fill func(*kafka.GraphEvent)) error {
	if !e.Enabled() {
		return nil
	}

	event := &kafka.GraphEvent{
		EventType:     string(eventType),
		SchemaVersion: SchemaVersion,
		WorkspaceID:   workspaceID,
		CorrelationID: bramblecontext.GetRequestID(ctx),
	}
	if g != nil {
		event.NodeCount = g.Len()
		event.EdgeCount = g.EdgeCount()
	}
	if fill != nil {
		fill(event)
	}

	if err := e.producer.PublishGraphEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}

// EmitGraphUpdated emits a graph updated event after records were ingested
func (e *Emitter) EmitGraphUpdated(ctx context.Context, workspaceID string, g *graph.Graph, recordCount int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGraphUpdated")
	defer span.End()

	return e.emit(ctx, EventTypeGraphUpdated, workspaceID, g, func(ev *kafka.GraphEvent) {
		ev.RecordCount = recordCount
	})
}

// EmitGraphLoaded emits a graph loaded event after a QNG file was composed in
func (e *Emitter) EmitGraphLoaded(ctx context.Context, workspaceID string, g *graph.Graph) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGraphLoaded")
	defer span.End()

	return e.emit(ctx, EventTypeGraphLoaded, workspaceID, g, nil)
}

// EmitGraphTidied emits a graph tidied event
func (e *Emitter) EmitGraphTidied(ctx context.Context, workspaceID string, g *graph.Graph, merged int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGraphTidied")
	defer span.End()

	return e.emit(ctx, EventTypeGraphTidied, workspaceID, g, func(ev *kafka.GraphEvent) {
		ev.RecordCount = merged
	})
}

// EmitNodesCombined emits a nodes combined event
func (e *Emitter) EmitNodesCombined(ctx context.Context, workspaceID string, g *graph.Graph, ids []string, survivor string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitNodesCombined")
	defer span.End()

	return e.emit(ctx, EventTypeNodesCombined, workspaceID, g, func(ev *kafka.GraphEvent) {
		ev.NodeIDs = ids
		ev.SurvivorID = survivor
	})
}

// EmitNodesRemoved emits a nodes removed event
func (e *Emitter) EmitNodesRemoved(ctx context.Context, workspaceID string, g *graph.Graph, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitNodesRemoved")
	defer span.End()

	return e.emit(ctx, EventTypeNodesRemoved, workspaceID, g, func(ev *kafka.GraphEvent) {
		ev.NodeIDs = ids
	})
}

// EmitSnapshotRestored emits a snapshot restored event
func (e *Emitter) EmitSnapshotRestored(ctx context.Context, workspaceID string, g *graph.Graph) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSnapshotRestored")
	defer span.End()

	return e.emit(ctx, EventTypeSnapshotRestored, workspaceID, g, nil)
}
