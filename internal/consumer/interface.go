package consumer

import "context"

// DebeziumEdgeRecord is a row image from the follows or blocks table.
// Only the columns of the source table are set.
type DebeziumEdgeRecord struct {
	FollowerID  string  `json:"follower_id,omitempty"`
	FollowingID string  `json:"following_id,omitempty"`
	BlockerID   string  `json:"blocker_id,omitempty"`
	BlockedID   string  `json:"blocked_id,omitempty"`
	CreatedAt   *string `json:"created_at"`
}

// Endpoints returns the two accounts the row connects.
func (r *DebeziumEdgeRecord) Endpoints() []string {
	if r == nil {
		return nil
	}
	var ids []string
	for _, id := range []string{r.FollowerID, r.FollowingID, r.BlockerID, r.BlockedID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// DebeziumSource identifies where a change came from.
type DebeziumSource struct {
	DB    string `json:"db"`
	Table string `json:"table"`
}

// DebeziumPayload is the payload field of a Debezium CDC message.
type DebeziumPayload struct {
	Before *DebeziumEdgeRecord `json:"before"`
	After  *DebeziumEdgeRecord `json:"after"`
	Source DebeziumSource      `json:"source"`
	Op     string              `json:"op"` // "c"=create, "u"=update, "d"=delete, "r"=snapshot
	TsMs   int64               `json:"ts_ms"`
}

// DebeziumMessage is the top-level Debezium CDC message envelope.
type DebeziumMessage struct {
	Payload DebeziumPayload `json:"payload"`
}

// CDCEventHandler processes a decoded Debezium CDC message.
type CDCEventHandler interface {
	HandleCDCEvent(ctx context.Context, event *DebeziumMessage) error
}

// CDCEventConsumer manages the Kafka consumer lifecycle.
type CDCEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
