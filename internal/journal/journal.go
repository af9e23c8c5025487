// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room event records.
var DefaultQueueName = "pointdeck_events"

// RoomEventRecord holds the minimal info the historian service needs to
// persist one mutation for later analysis.
type RoomEventRecord struct {
	EventID   uuid.UUID              `json:"event_id"`
	RoomID    string                 `json:"room_id"`
	ActorID   string                 `json:"actor_id,omitempty"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Journal appends room event records to a Redis list drained by the
// historian. Appends are best-effort; the caller logs and moves on.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// New wraps an already-connected client. An empty queue name uses the default.
func New(rdb *redis.Client, queue string) *Journal {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Journal{rdb: rdb, queue: queue}
}

// Append serializes the record to JSON and pushes it onto the queue.
func (j *Journal) Append(ctx context.Context, record RoomEventRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEventRecord: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}
