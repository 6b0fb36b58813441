// Package hub fans out messages to registered connections. Delivery is
// best-effort and at-most-once per recipient per call. All operations flow
// through a single command channel drained by one run loop, which preserves
// per-recipient ordering across calls.
package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/internal/metrics"
)

const sendTimeout = 5 * time.Second

type hubCmd interface{ hubCmd() }

type registerCmd struct {
	client domain.Client
}

func (registerCmd) hubCmd() {}

type unregisterCmd struct {
	clientID string
}

func (unregisterCmd) hubCmd() {}

type broadcastCmd struct {
	exceptID string
	message  []byte
}

func (broadcastCmd) hubCmd() {}

type sendToCmd struct {
	clientID string
	message  []byte
}

func (sendToCmd) hubCmd() {}

type Hub struct {
	clients         sync.Map // map[string]domain.Client
	cmdCh           chan hubCmd
	logger          *logging.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	messagesSent    int64
	messagesDropped int64
	startTime       time.Time
}

func New(logger *logging.Logger) *Hub {
	return &Hub{
		cmdCh:     make(chan hubCmd, 1024),
		logger:    logger,
		startTime: time.Now(),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run()
	h.logger.Info("hub started")
	return nil
}

// Stop drains in-flight deliveries, then closes every remaining client.
func (h *Hub) Stop() error {
	h.logger.Info("stopping hub")
	h.cancel()
	h.wg.Wait()

	h.clients.Range(func(key, value any) bool {
		if client, ok := value.(domain.Client); ok {
			client.Close()
		}
		return true
	})

	h.logger.Info("hub stopped")
	return nil
}

func (h *Hub) Register(client domain.Client) error {
	return h.enqueue(registerCmd{client: client})
}

func (h *Hub) Unregister(clientID string) error {
	return h.enqueue(unregisterCmd{clientID: clientID})
}

// Broadcast delivers a message to every client registered at the moment of
// iteration. Clients that disconnect mid-broadcast simply do not receive it.
func (h *Hub) Broadcast(message []byte) error {
	return h.enqueue(broadcastCmd{message: message})
}

// BroadcastExcept delivers a message to every registered client except one.
func (h *Hub) BroadcastExcept(clientID string, message []byte) error {
	return h.enqueue(broadcastCmd{exceptID: clientID, message: message})
}

// SendTo delivers a message to exactly one client. A missing client is a
// silent drop; a disconnect may race with an in-flight send.
func (h *Hub) SendTo(clientID string, message []byte) error {
	return h.enqueue(sendToCmd{clientID: clientID, message: message})
}

func (h *Hub) enqueue(cmd hubCmd) error {
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.ctx.Done():
		return errors.New("hub is stopped")
	default:
		return errors.New("hub command channel is full")
	}
}

func (h *Hub) GetClient(clientID string) (domain.Client, bool) {
	if value, ok := h.clients.Load(clientID); ok {
		return value.(domain.Client), true
	}
	return nil, false
}

func (h *Hub) GetClients() []domain.Client {
	var clients []domain.Client
	h.clients.Range(func(key, value any) bool {
		if client, ok := value.(domain.Client); ok {
			clients = append(clients, client)
		}
		return true
	})
	return clients
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			h.drain()
			return
		case cmd := <-h.cmdCh:
			h.handle(cmd)
		}
	}
}

// drain flushes commands that were queued before cancellation.
func (h *Hub) drain() {
	for {
		select {
		case cmd := <-h.cmdCh:
			h.handle(cmd)
		default:
			return
		}
	}
}

func (h *Hub) handle(cmd hubCmd) {
	switch c := cmd.(type) {
	case registerCmd:
		h.handleRegister(c.client)
	case unregisterCmd:
		h.handleUnregister(c.clientID)
	case broadcastCmd:
		h.handleBroadcast(c)
	case sendToCmd:
		h.handleSendTo(c.clientID, c.message)
	}
}

func (h *Hub) handleRegister(client domain.Client) {
	clientID := client.ID()

	if _, exists := h.clients.Load(clientID); exists {
		h.logger.Warn("client already registered", "client_id", clientID)
		return
	}

	h.clients.Store(clientID, client)

	h.logger.Info("client registered",
		"client_id", clientID,
		"total_clients", h.getClientCount(),
	)
}

func (h *Hub) handleUnregister(clientID string) {
	if client, ok := h.clients.LoadAndDelete(clientID); ok {
		if c, ok := client.(domain.Client); ok {
			c.Close()
		}

		h.logger.Info("client unregistered",
			"client_id", clientID,
			"total_clients", h.getClientCount(),
		)
	}
}

func (h *Hub) handleBroadcast(cmd broadcastCmd) {
	var successCount, errorCount int

	h.clients.Range(func(key, value any) bool {
		client, ok := value.(domain.Client)
		if !ok {
			return true
		}
		if cmd.exceptID != "" && client.ID() == cmd.exceptID {
			return true
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := client.Send(ctx, cmd.message)
		cancel()

		if err != nil {
			errorCount++
			atomic.AddInt64(&h.messagesDropped, 1)
			metrics.EventsDropped.WithLabelValues("send_error").Inc()
			h.logger.Debug("failed to send to client",
				"client_id", client.ID(),
				"error", err,
			)
		} else {
			successCount++
			atomic.AddInt64(&h.messagesSent, 1)
		}
		return true
	})

	h.logger.Debug("broadcast complete",
		"success_count", successCount,
		"error_count", errorCount,
	)
}

func (h *Hub) handleSendTo(clientID string, message []byte) {
	client, ok := h.GetClient(clientID)
	if !ok {
		atomic.AddInt64(&h.messagesDropped, 1)
		metrics.EventsDropped.WithLabelValues("client_gone").Inc()
		h.logger.Debug("client not found, dropping message", "client_id", clientID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	err := client.Send(ctx, message)
	cancel()

	if err != nil {
		atomic.AddInt64(&h.messagesDropped, 1)
		metrics.EventsDropped.WithLabelValues("send_error").Inc()
		h.logger.Debug("failed to send to client",
			"client_id", clientID,
			"error", err,
		)
	} else {
		atomic.AddInt64(&h.messagesSent, 1)
	}
}

func (h *Hub) getClientCount() int {
	count := 0
	h.clients.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (h *Hub) GetStats() domain.HubStats {
	return domain.HubStats{
		ConnectedClients: h.getClientCount(),
		MessagesSent:     atomic.LoadInt64(&h.messagesSent),
		MessagesDropped:  atomic.LoadInt64(&h.messagesDropped),
		Uptime:           time.Since(h.startTime).Seconds(),
	}
}
