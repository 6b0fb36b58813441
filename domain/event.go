package domain

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// MessageType represents the type of a hub message
type MessageType string

// Client-originated request types
const (
	MessageTypeRename    MessageType = "rename"
	MessageTypeEcho      MessageType = "echo"
	MessageTypeBroadcast MessageType = "broadcast"
)

// Server-originated event types
const (
	MessageTypeWelcome         MessageType = "welcome"
	MessageTypeUserJoined      MessageType = "user-joined"
	MessageTypeUsernameChanged MessageType = "username-changed"
	MessageTypeUserLeft        MessageType = "user-left"
	MessageTypeTimeUpdate      MessageType = "time-update"
)

// Message is the envelope every frame travels in, both directions.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewMessage builds an envelope around a payload with a fresh id and timestamp.
func NewMessage(messageType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Encode marshals the full envelope for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// User is the public view of one connected identity, as carried in rosters.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// WelcomePayload greets a freshly accepted connection with its own record
// and the full roster.
type WelcomePayload struct {
	Message      string    `json:"message"`
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
	User         User      `json:"user"`
	OnlineUsers  []User    `json:"onlineUsers"`
}

// UserJoinedPayload notifies existing peers about a new connection.
type UserJoinedPayload struct {
	User        User   `json:"user"`
	OnlineUsers []User `json:"onlineUsers"`
	TotalUsers  int    `json:"totalUsers"`
}

// UsernameChangedPayload announces a successful rename to everyone,
// including the renaming client.
type UsernameChangedPayload struct {
	UserID      string `json:"userId"`
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
	OnlineUsers []User `json:"onlineUsers"`
}

// EchoPayload reflects a client's own payload back at it.
type EchoPayload struct {
	Original  json.RawMessage `json:"original"`
	Timestamp time.Time       `json:"timestamp"`
	From      string          `json:"from"`
}

// BroadcastPayload relays a client-originated message to all connections.
type BroadcastPayload struct {
	From      string          `json:"from"`
	Username  string          `json:"username"`
	Message   json.RawMessage `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// UserLeftPayload notifies remaining peers about a disconnection.
type UserLeftPayload struct {
	User        User   `json:"user"`
	OnlineUsers []User `json:"onlineUsers"`
	TotalUsers  int    `json:"totalUsers"`
}

// TimeUpdatePayload carries the periodic time tick in three representations.
// Formatted is display-only and implementation-defined.
type TimeUpdatePayload struct {
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
	Formatted string `json:"formatted"`
}

// RenameRequest is the payload of a client rename request.
type RenameRequest struct {
	Username string `json:"username"`
}
