// Package pubsub provides a generic publish/subscribe broker. The registries use it
// to announce catalog changes to the resolver cache and to live-reload clients.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	ReloadedEvent EventType = "reloaded"
	AddedEvent    EventType = "added"
	RemovedEvent  EventType = "removed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
