package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/internal/metrics"
	"github.com/HMasataka/presencehub/presence"
	"github.com/jonboulle/clockwork"
)

// unknownSender stands in for a display name when the sender's record
// vanished between receiving a request and handling it.
const unknownSender = "Unknown"

type RenameHandler struct {
	hub      domain.Hub
	registry *presence.Registry
	logger   *logging.Logger
}

func NewRenameHandler(hub domain.Hub, registry *presence.Registry, logger *logging.Logger) *RenameHandler {
	return &RenameHandler{
		hub:      hub,
		registry: registry,
		logger:   logger,
	}
}

// Handle applies a rename and announces it to everyone, including the
// renaming client. Invalid or raced requests are dropped without a reply.
func (h *RenameHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	clientID, ok := ClientIDFromContext(ctx)
	if !ok {
		return nil, errors.New("client id not found in context")
	}

	var req domain.RenameRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.logger.Debug("malformed rename request", "client_id", clientID, "error", err)
		return nil, nil
	}

	oldName, newName, err := h.registry.Rename(clientID, req.Username)
	if err != nil {
		// Blank names and vanished records are dropped without feedback.
		h.logger.Debug("rename dropped", "client_id", clientID, "error", err)
		return nil, nil
	}

	changed, err := encode(domain.MessageTypeUsernameChanged, domain.UsernameChangedPayload{
		UserID:      clientID,
		OldUsername: oldName,
		NewUsername: newName,
		OnlineUsers: h.registry.Snapshot(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.hub.Broadcast(changed); err != nil {
		h.logger.Warn("failed to queue username-changed", "client_id", clientID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeUsernameChanged)).Inc()

	h.logger.Info("client renamed",
		"client_id", clientID,
		"old_name", oldName,
		"new_name", newName,
	)

	return nil, nil
}

func (h *RenameHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeRename
}

type EchoHandler struct {
	hub      domain.Hub
	registry *presence.Registry
	clock    clockwork.Clock
	logger   *logging.Logger
}

func NewEchoHandler(hub domain.Hub, registry *presence.Registry, clock clockwork.Clock, logger *logging.Logger) *EchoHandler {
	return &EchoHandler{
		hub:      hub,
		registry: registry,
		clock:    clock,
		logger:   logger,
	}
}

// Handle reflects the sender's payload back at it, stamped with the sender's
// current display name.
func (h *EchoHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	clientID, ok := ClientIDFromContext(ctx)
	if !ok {
		return nil, errors.New("client id not found in context")
	}

	echo, err := encode(domain.MessageTypeEcho, domain.EchoPayload{
		Original:  msg.Data,
		Timestamp: h.clock.Now(),
		From:      h.senderName(clientID),
	})
	if err != nil {
		return nil, err
	}

	if err := h.hub.SendTo(clientID, echo); err != nil {
		h.logger.Warn("failed to queue echo", "client_id", clientID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeEcho)).Inc()

	return nil, nil
}

func (h *EchoHandler) senderName(clientID string) string {
	if user, err := h.registry.Get(clientID); err == nil {
		return user.DisplayName
	}
	return unknownSender
}

func (h *EchoHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeEcho
}

type BroadcastHandler struct {
	hub      domain.Hub
	registry *presence.Registry
	clock    clockwork.Clock
	logger   *logging.Logger
}

func NewBroadcastHandler(hub domain.Hub, registry *presence.Registry, clock clockwork.Clock, logger *logging.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		hub:      hub,
		registry: registry,
		clock:    clock,
		logger:   logger,
	}
}

// Handle relays a client message to every connection, the sender included.
func (h *BroadcastHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	clientID, ok := ClientIDFromContext(ctx)
	if !ok {
		return nil, errors.New("client id not found in context")
	}

	username := unknownSender
	if user, err := h.registry.Get(clientID); err == nil {
		username = user.DisplayName
	}

	relay, err := encode(domain.MessageTypeBroadcast, domain.BroadcastPayload{
		From:      clientID,
		Username:  username,
		Message:   msg.Data,
		Timestamp: h.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.hub.Broadcast(relay); err != nil {
		h.logger.Warn("failed to queue broadcast", "client_id", clientID, "error", err)
	}
	metrics.EventsSent.WithLabelValues(string(domain.MessageTypeBroadcast)).Inc()

	return nil, nil
}

func (h *BroadcastHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeBroadcast
}
