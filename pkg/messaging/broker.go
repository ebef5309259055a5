package messaging

import (
	"context"
)

// Broker defines the interface for message brokers. The delivery core uses
// it to fan presence transitions out to every running API instance.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher is the write-only subset used by components that only emit.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}
