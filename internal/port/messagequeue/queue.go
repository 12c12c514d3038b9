// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects published by TenantCMS.
const (
	SubjectTenantCreated = "tenants.created"
	SubjectTenantUpdated = "tenants.updated"
	SubjectTenantDeleted = "tenants.deleted"

	// SubjectContent prefixes document events: content.{collection}.{created|updated|deleted}.
	SubjectContent = "content"
)

// ContentSubject builds the subject for a document event.
func ContentSubject(collection, event string) string {
	return SubjectContent + "." + collection + "." + event
}
