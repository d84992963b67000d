// Package messaging abstracts the message broker used for EVENT relays.
// Skurge only publishes; subscription concerns live with the destination
// systems.
package messaging

import "context"

// Publisher publishes messages to subjects (routing keys).
type Publisher interface {
	// Publish sends a message to the specified subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}
