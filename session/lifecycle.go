package session

import (
	"fmt"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/identity"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/internal/metrics"
	"github.com/HMasataka/presencehub/presence"
	"github.com/jonboulle/clockwork"
)

// Lifecycle orchestrates registry mutation and peer notification at connect
// and disconnect. Each connection passes through it exactly once on the way
// in and once on the way out.
type Lifecycle struct {
	hub      domain.Hub
	registry *presence.Registry
	names    *identity.Generator
	clock    clockwork.Clock
	logger   *logging.Logger
}

func NewLifecycle(hub domain.Hub, registry *presence.Registry, names *identity.Generator, clock clockwork.Clock, logger *logging.Logger) *Lifecycle {
	return &Lifecycle{
		hub:      hub,
		registry: registry,
		names:    names,
		clock:    clock,
		logger:   logger,
	}
}

// HandleConnect assigns the connection an identity, inserts it into the
// registry, greets it with the full roster, and announces it to everyone
// else. A duplicate id is an invariant violation and fails the connection.
func (l *Lifecycle) HandleConnect(client domain.Client) (domain.User, error) {
	user, err := l.registry.Insert(client.ID(), l.names.Generate())
	if err != nil {
		l.logger.Error("registry insert failed, refusing connection",
			"client_id", client.ID(),
			"error", err,
		)
		return domain.User{}, fmt.Errorf("insert connection %s: %w", client.ID(), err)
	}

	if err := l.hub.Register(client); err != nil {
		l.registry.Remove(client.ID())
		return domain.User{}, fmt.Errorf("register connection %s: %w", client.ID(), err)
	}

	roster := l.registry.Snapshot()

	welcome, err := encode(domain.MessageTypeWelcome, domain.WelcomePayload{
		Message:      "Welcome to the presence hub!",
		ConnectionID: user.ID,
		Timestamp:    l.clock.Now(),
		User:         user,
		OnlineUsers:  roster,
	})
	if err != nil {
		return user, err
	}
	if err := l.hub.SendTo(user.ID, welcome); err != nil {
		l.logger.Warn("failed to queue welcome", "client_id", user.ID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeWelcome)).Inc()

	joined, err := encode(domain.MessageTypeUserJoined, domain.UserJoinedPayload{
		User:        user,
		OnlineUsers: roster,
		TotalUsers:  len(roster),
	})
	if err != nil {
		return user, err
	}
	if err := l.hub.BroadcastExcept(user.ID, joined); err != nil {
		l.logger.Warn("failed to queue user-joined", "client_id", user.ID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeUserJoined)).Inc()

	l.logger.Info("connection accepted",
		"client_id", user.ID,
		"display_name", user.DisplayName,
		"online", len(roster),
	)

	return user, nil
}

// HandleDisconnect removes the connection and tells the remaining peers. A
// connection that was never registered, or already removed, is a no-op and
// produces no event.
func (l *Lifecycle) HandleDisconnect(clientID string) {
	user, err := l.registry.Remove(clientID)
	if err != nil {
		return
	}

	if err := l.hub.Unregister(clientID); err != nil {
		l.logger.Warn("failed to unregister client", "client_id", clientID, "error", err)
	}

	roster := l.registry.Snapshot()

	left, err := encode(domain.MessageTypeUserLeft, domain.UserLeftPayload{
		User:        user,
		OnlineUsers: roster,
		TotalUsers:  len(roster),
	})
	if err != nil {
		l.logger.Error("failed to encode user-left", "error", err)
		return
	}
	if err := l.hub.Broadcast(left); err != nil {
		l.logger.Warn("failed to queue user-left", "client_id", clientID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeUserLeft)).Inc()

	l.logger.Info("connection closed",
		"client_id", clientID,
		"display_name", user.DisplayName,
		"online", len(roster),
	)
}

// encode wraps a payload in a fresh envelope and marshals it for the wire.
func encode(messageType domain.MessageType, payload any) ([]byte, error) {
	msg, err := domain.NewMessage(messageType, payload)
	if err != nil {
		return nil, err
	}
	return msg.Encode()
}
