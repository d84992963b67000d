package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayurjain-livspace/skurge/internal/messaging"
)

// EventPublisher publishes relay payloads as JSON messages under the routing
// key resolved by the relay rules. Fire-and-forget from the pipeline's
// perspective.
type EventPublisher struct {
	pub messaging.Publisher
}

// NewEventPublisher wraps a broker publisher.
func NewEventPublisher(pub messaging.Publisher) *EventPublisher {
	return &EventPublisher{pub: pub}
}

// Publish marshals payload and publishes it under routingKey.
func (p *EventPublisher) Publish(ctx context.Context, routingKey string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}
	if err := p.pub.Publish(ctx, routingKey, data); err != nil {
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}
	return nil
}
