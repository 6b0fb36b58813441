package session

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/hub"
	"github.com/HMasataka/presencehub/identity"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/presence"
	"github.com/HMasataka/presencehub/router"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	id       string
	mu       sync.Mutex
	received []domain.Message
	closed   bool
}

func (m *mockClient) ID() string { return m.id }

func (m *mockClient) Send(_ context.Context, message []byte) error {
	var msg domain.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, msg)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) eventsOfType(messageType domain.MessageType) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Message
	for _, msg := range m.received {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

type fixture struct {
	hub       *hub.Hub
	registry  *presence.Registry
	lifecycle *Lifecycle
	router    *router.Router
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	clock := clockwork.NewFakeClock()
	registry := presence.NewRegistry(clock)

	h := hub.New(logger)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop() })

	names := identity.NewGenerator(rand.NewSource(1))
	lifecycle := NewLifecycle(h, registry, names, clock, logger)
	rtr := NewRouter(h, registry, clock, logger)

	return &fixture{
		hub:       h,
		registry:  registry,
		lifecycle: lifecycle,
		router:    rtr,
		clock:     clock,
	}
}

func (f *fixture) connect(t *testing.T, id string) (*mockClient, domain.User) {
	t.Helper()

	client := &mockClient{id: id}
	user, err := f.lifecycle.HandleConnect(client)
	require.NoError(t, err)

	waitForEvents(t, client, domain.MessageTypeWelcome, 1)
	return client, user
}

func (f *fixture) request(t *testing.T, clientID string, messageType domain.MessageType, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	msg := &domain.Message{
		ID:        "req-" + clientID,
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}

	_, err = f.router.Handle(WithClientID(context.Background(), clientID), msg)
	require.NoError(t, err)
}

func waitForEvents(t *testing.T, c *mockClient, messageType domain.MessageType, count int) []domain.Message {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(c.eventsOfType(messageType)) >= count
	}, time.Second, 5*time.Millisecond, "waiting for %d %q events on %s", count, messageType, c.id)
	return c.eventsOfType(messageType)
}

func decodePayload[T any](t *testing.T, msg domain.Message) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return payload
}

func TestConnectRenameBroadcastDisconnectScenario(t *testing.T) {
	f := newFixture(t)

	// Connect A: welcome with a single-entry roster.
	clientA, userA := f.connect(t, "a")
	welcomeA := decodePayload[domain.WelcomePayload](t, clientA.eventsOfType(domain.MessageTypeWelcome)[0])
	assert.Equal(t, "a", welcomeA.ConnectionID)
	assert.Equal(t, userA.ID, welcomeA.User.ID)
	assert.Equal(t, userA.DisplayName, welcomeA.User.DisplayName)
	assert.True(t, welcomeA.User.ConnectedAt.Equal(userA.ConnectedAt))
	assert.Len(t, welcomeA.OnlineUsers, 1)

	// Connect B: A sees user-joined with totalUsers 2, B's welcome roster has 2.
	clientB, userB := f.connect(t, "b")
	joined := decodePayload[domain.UserJoinedPayload](t, waitForEvents(t, clientA, domain.MessageTypeUserJoined, 1)[0])
	assert.Equal(t, userB.ID, joined.User.ID)
	assert.Equal(t, userB.DisplayName, joined.User.DisplayName)
	assert.Equal(t, 2, joined.TotalUsers)

	welcomeB := decodePayload[domain.WelcomePayload](t, clientB.eventsOfType(domain.MessageTypeWelcome)[0])
	assert.Len(t, welcomeB.OnlineUsers, 2)
	assert.Empty(t, clientB.eventsOfType(domain.MessageTypeUserJoined), "joining client must not see its own user-joined")

	// B renames to X: both sides receive username-changed.
	f.request(t, "b", domain.MessageTypeRename, domain.RenameRequest{Username: "X"})

	changedA := decodePayload[domain.UsernameChangedPayload](t, waitForEvents(t, clientA, domain.MessageTypeUsernameChanged, 1)[0])
	changedB := decodePayload[domain.UsernameChangedPayload](t, waitForEvents(t, clientB, domain.MessageTypeUsernameChanged, 1)[0])
	assert.Equal(t, "b", changedA.UserID)
	assert.Equal(t, userB.DisplayName, changedA.OldUsername)
	assert.Equal(t, "X", changedA.NewUsername)
	assert.Equal(t, changedA, changedB)

	// A broadcasts: both sides, sender included, receive the relay.
	f.request(t, "a", domain.MessageTypeBroadcast, map[string]string{"msg": "hi"})

	relayA := decodePayload[domain.BroadcastPayload](t, waitForEvents(t, clientA, domain.MessageTypeBroadcast, 1)[0])
	relayB := decodePayload[domain.BroadcastPayload](t, waitForEvents(t, clientB, domain.MessageTypeBroadcast, 1)[0])
	assert.Equal(t, "a", relayA.From)
	assert.Equal(t, userA.DisplayName, relayA.Username)
	assert.JSONEq(t, `{"msg":"hi"}`, string(relayA.Message))
	assert.Equal(t, relayA, relayB)

	// Disconnect A: B sees user-left with totalUsers 1.
	f.lifecycle.HandleDisconnect("a")

	left := decodePayload[domain.UserLeftPayload](t, waitForEvents(t, clientB, domain.MessageTypeUserLeft, 1)[0])
	assert.Equal(t, "a", left.User.ID)
	assert.Equal(t, 1, left.TotalUsers)
	assert.Equal(t, 1, f.registry.Count())
}

func TestDoubleDisconnectEmitsNothing(t *testing.T) {
	f := newFixture(t)

	f.connect(t, "a")
	clientB, _ := f.connect(t, "b")

	f.lifecycle.HandleDisconnect("a")
	waitForEvents(t, clientB, domain.MessageTypeUserLeft, 1)

	f.lifecycle.HandleDisconnect("a")
	f.lifecycle.HandleDisconnect("never-connected")

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, clientB.eventsOfType(domain.MessageTypeUserLeft), 1)
	assert.Equal(t, 1, f.registry.Count())
}

func TestDuplicateConnectionIDRefused(t *testing.T) {
	f := newFixture(t)

	f.connect(t, "a")

	_, err := f.lifecycle.HandleConnect(&mockClient{id: "a"})
	require.ErrorIs(t, err, presence.ErrDuplicateID)
	assert.Equal(t, 1, f.registry.Count())
}

func TestInvalidRenameIsDroppedSilently(t *testing.T) {
	f := newFixture(t)

	clientA, userA := f.connect(t, "a")

	f.request(t, "a", domain.MessageTypeRename, domain.RenameRequest{Username: "   "})
	f.request(t, "ghost", domain.MessageTypeRename, domain.RenameRequest{Username: "Valid"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, clientA.eventsOfType(domain.MessageTypeUsernameChanged))

	got, err := f.registry.Get("a")
	require.NoError(t, err)
	assert.Equal(t, userA.DisplayName, got.DisplayName)
}

func TestEchoReflectsToSenderOnly(t *testing.T) {
	f := newFixture(t)

	clientA, userA := f.connect(t, "a")
	clientB, _ := f.connect(t, "b")

	f.request(t, "a", domain.MessageTypeEcho, map[string]string{"ping": "pong"})

	echo := decodePayload[domain.EchoPayload](t, waitForEvents(t, clientA, domain.MessageTypeEcho, 1)[0])
	assert.Equal(t, userA.DisplayName, echo.From)
	assert.JSONEq(t, `{"ping":"pong"}`, string(echo.Original))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, clientB.eventsOfType(domain.MessageTypeEcho))
}

func TestEchoFallsBackToUnknownSender(t *testing.T) {
	f := newFixture(t)

	clientA, _ := f.connect(t, "a")

	// The record vanishes while the request is in flight.
	_, err := f.registry.Remove("a")
	require.NoError(t, err)

	f.request(t, "a", domain.MessageTypeEcho, map[string]string{"ping": "pong"})

	echo := decodePayload[domain.EchoPayload](t, waitForEvents(t, clientA, domain.MessageTypeEcho, 1)[0])
	assert.Equal(t, unknownSender, echo.From)
}
