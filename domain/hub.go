package domain

import "context"

type HubStats struct {
	ConnectedClients int     `json:"connected_clients"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesDropped  int64   `json:"messages_dropped"`
	Uptime           float64 `json:"uptime_seconds"`
}

type Hub interface {
	// Start starts the hub
	Start(ctx context.Context) error

	// Stop stops the hub gracefully
	Stop() error

	// Register registers a new client
	Register(client Client) error

	// Unregister removes a client
	Unregister(clientID string) error

	// Broadcast sends a message to all connected clients
	Broadcast(message []byte) error

	// BroadcastExcept sends a message to all connected clients but one
	BroadcastExcept(clientID string, message []byte) error

	// SendTo sends a message to a specific client
	SendTo(clientID string, message []byte) error

	// GetClient retrieves a client by ID
	GetClient(clientID string) (Client, bool)

	// GetClients returns all connected clients
	GetClients() []Client

	// GetStats returns hub delivery statistics
	GetStats() HubStats
}
