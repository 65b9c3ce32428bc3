package events

// EventType defines the type of event
type EventType string

const (
	// Graph events
	EventTypeGraphUpdated EventType = "graph.updated"
	EventTypeGraphLoaded  EventType = "graph.loaded"
	EventTypeGraphTidied  EventType = "graph.tidied"

	// Node events
	EventTypeNodesCombined EventType = "nodes.combined"
	EventTypeNodesRemoved  EventType = "nodes.removed"

	// Snapshot events
	EventTypeSnapshotRestored EventType = "snapshot.restored"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"
