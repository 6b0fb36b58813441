package domain

import "context"

// Client is one live bidirectional channel to a connected peer. The transport
// layer owns the implementation; the hub only ever sees this interface.
type Client interface {
	ID() string

	// Send queues a message for delivery. Implementations must not block on a
	// slow peer; delivery is best-effort.
	Send(ctx context.Context, message []byte) error

	Close() error
}
