package ticker

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *mockBroadcaster) Broadcast(message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mockBroadcaster) last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

func newTestService(t *testing.T) (*Service, *mockBroadcaster, *clockwork.FakeClock) {
	t.Helper()

	b := &mockBroadcaster{}
	clock := clockwork.NewFakeClock()
	s := NewService(b, clock, time.Second, logging.New(logging.Config{Level: "error", Format: "text"}))
	t.Cleanup(s.Stop)
	return s, b, clock
}

func TestFiresEveryInterval(t *testing.T) {
	s, b, clock := newTestService(t)

	s.Start()
	clock.BlockUntil(1)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return b.count() == 1 }, time.Second, 5*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return b.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTimeUpdatePayload(t *testing.T) {
	s, b, clock := newTestService(t)

	s.Start()
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return b.count() == 1 }, time.Second, 5*time.Millisecond)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(b.last(), &msg))
	assert.Equal(t, domain.MessageTypeTimeUpdate, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var payload domain.TimeUpdatePayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))

	assert.Equal(t, clock.Now().UnixMilli(), payload.Timestamp)
	parsed, err := time.Parse(time.RFC3339Nano, payload.Time)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(clock.Now()))
	assert.NotEmpty(t, payload.Formatted)
}

func TestDoubleStartKeepsSingleTickStream(t *testing.T) {
	s, b, clock := newTestService(t)

	s.Start()
	s.Start()

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return b.count() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, b.count(), "double start must not produce a second tick stream")
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	s, b, clock := newTestService(t)

	s.Start()
	clock.BlockUntil(1)
	s.Stop()

	clock.Advance(5 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, b.count(), "no tick may fire after Stop returns")
}

func TestStopWhileStoppedIsNoOp(t *testing.T) {
	s, _, _ := newTestService(t)

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
	assert.False(t, s.Running())
}

func TestRestartAfterStop(t *testing.T) {
	s, b, clock := newTestService(t)

	s.Start()
	clock.BlockUntil(1)
	s.Stop()
	require.False(t, s.Running())

	s.Start()
	require.True(t, s.Running())
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return b.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAccessors(t *testing.T) {
	s, _, _ := newTestService(t)

	assert.Equal(t, time.Second, s.Interval())
	assert.False(t, s.Running())

	s.Start()
	assert.True(t, s.Running())
}
