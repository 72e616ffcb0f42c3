package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"example.com/blocus/internal/cache"
)

const eventTypeHeader = "event_type"

// Gym change event types published by the directory.
const (
	EventGymCreated = "gym.created"
	EventGymUpdated = "gym.updated"
	EventGymDeleted = "gym.deleted"
)

// GymEvent is the payload of a gym change event.
type GymEvent struct {
	GymID      string `json:"gym_id"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

// InvalidationHandler marks the cached gym list stale whenever the directory
// reports a change. The persisted selection is left untouched.
type InvalidationHandler struct {
	invalidator cache.Invalidator
	key         string
	logger      *log.Logger
}

// NewInvalidationHandler constructs a handler invalidating cache.GymsKey.
func NewInvalidationHandler(invalidator cache.Invalidator, logger *log.Logger) *InvalidationHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &InvalidationHandler{invalidator: invalidator, key: cache.GymsKey, logger: logger}
}

// Handle implements Handler. Unrelated event types are ignored.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	eventType := msg.Headers[eventTypeHeader]
	switch eventType {
	case EventGymCreated, EventGymUpdated, EventGymDeleted:
	default:
		return nil
	}

	var evt GymEvent
	payload := msg.Payload
	// Handle Confluent Schema Registry wire format (magic byte + 4-byte schema id)
	if len(payload) >= 5 && payload[0] == 0x00 {
		payload = payload[5:]
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
	}

	if err := h.invalidator.Invalidate(ctx, h.key); err != nil {
		return fmt.Errorf("invalidate %s: %w", h.key, err)
	}
	h.logger.Printf("invalidated %s after %s (gym=%s)", h.key, eventType, evt.GymID)
	RecordProcessed(msg)
	return nil
}
