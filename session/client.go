package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/gorilla/websocket"
)

var errSendBufferFull = errors.New("send buffer is full")

// wsClient adapts one gorilla connection to domain.Client. Outbound messages
// go through a buffered channel drained by a write pump, so a slow peer never
// blocks the hub; overflow is dropped.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *logging.Logger

	writeTimeout time.Duration
	pingPeriod   time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newWSClient(id string, conn *websocket.Conn, options ServerOptions, logger *logging.Logger) *wsClient {
	return &wsClient{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, options.SendBufferSize),
		logger:       logger,
		writeTimeout: options.WriteTimeout,
		pingPeriod:   options.PongTimeout * 9 / 10,
		done:         make(chan struct{}),
	}
}

func (c *wsClient) ID() string {
	return c.id
}

func (c *wsClient) Send(_ context.Context, message []byte) error {
	select {
	case <-c.done:
		return errors.New("connection is closed")
	default:
	}

	select {
	case c.send <- message:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump serializes all writes to the connection. It owns the socket's
// write side until the client closes.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
