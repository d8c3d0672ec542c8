package publisher

import (
	"context"
	"encoding/json"
	"fmt"
)

// SyncEventKey is the stream field carrying a base64 encoded sync event
const SyncEventKey = "b64_sync_event"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to the stream under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// PublishEvent JSON-encodes event and publishes it as a sync event
func PublishEvent(ctx context.Context, p Publisher, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.Publish(ctx, SyncEventKey, data)
}
