package observability

import (
	"context"
	"sync"
)

// EventPublisher is satisfied by the broker publishers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var (
	mu               sync.RWMutex
	defaultPublisher EventPublisher
	defaultSink      string
)

// SetPublisher installs the process-wide lifecycle event publisher.
func SetPublisher(publisher EventPublisher, sink string) {
	mu.Lock()
	defer mu.Unlock()
	defaultPublisher = publisher
	defaultSink = sink
}

// PublishEvent sends a lifecycle event; it is a no-op until SetPublisher.
func PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	mu.RLock()
	publisher, sink := defaultPublisher, defaultSink
	mu.RUnlock()
	if publisher == nil {
		return nil
	}

	err := publisher.Publish(ctx, routingKey, message)
	if err != nil {
		IncPublishError(sink)
	}
	return err
}
