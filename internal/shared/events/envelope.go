package events

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical cross-context event shape carried on the bus.
// Context ports declare structurally identical envelopes so application code
// never imports shared packages; the composition root converts at the edge.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SourceService string          `json:"source_service"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}
