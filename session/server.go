package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/config"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/internal/metrics"
	"github.com/HMasataka/presencehub/router"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"golang.org/x/time/rate"
)

type ServerOptions struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	InboundRate     float64
	InboundBurst    int
}

func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		InboundRate:     20,
		InboundBurst:    40,
	}
}

func OptionsFromConfig(cfg config.WebSocketConfig) ServerOptions {
	return ServerOptions{
		WriteTimeout:    cfg.WriteTimeout,
		PongTimeout:     cfg.PongTimeout,
		MaxMessageSize:  cfg.MaxMessageSize,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		SendBufferSize:  cfg.SendBufferSize,
		InboundRate:     cfg.InboundRate,
		InboundBurst:    cfg.InboundBurst,
	}
}

// Server accepts WebSocket connections and runs one session per connection:
// lifecycle on the way in and out, router for everything in between.
type Server struct {
	upgrader  websocket.Upgrader
	lifecycle *Lifecycle
	router    *router.Router
	logger    *logging.Logger
	options   ServerOptions
}

func NewServer(lifecycle *Lifecycle, router *router.Router, logger *logging.Logger, options ServerOptions) *Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for simplicity, adjust as needed
		},
		ReadBufferSize:  options.ReadBufferSize,
		WriteBufferSize: options.WriteBufferSize,
	}

	return &Server{
		upgrader:  upgrader,
		lifecycle: lifecycle,
		router:    router,
		logger:    logger,
		options:   options,
	}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	clientID := xid.New().String()
	client := newWSClient(clientID, conn, s.options, s.logger)
	go client.writePump()

	if _, err := s.lifecycle.HandleConnect(client); err != nil {
		client.Close()
		return
	}

	s.readPump(r.Context(), conn, client)
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, client *wsClient) {
	defer func() {
		// A panic while handling one connection must not take down the rest.
		if rec := recover(); rec != nil {
			s.logger.Error("panic in connection handler", "client_id", client.ID(), "panic", rec)
		}

		s.lifecycle.HandleDisconnect(client.ID())
		client.Close()
	}()

	conn.SetReadLimit(s.options.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.options.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.options.PongTimeout))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(s.options.InboundRate), s.options.InboundBurst)
	ctx = WithClientID(ctx, client.ID())

	for {
		wsType, rawMessage, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket unexpected close error", "client_id", client.ID(), "error", err)
			} else {
				s.logger.Info("websocket connection closed", "client_id", client.ID())
			}
			return
		}

		if wsType != websocket.TextMessage && wsType != websocket.BinaryMessage {
			continue
		}

		if !limiter.Allow() {
			metrics.InboundRateLimited.Inc()
			s.logger.Debug("inbound frame rate limited", "client_id", client.ID())
			continue
		}

		var message domain.Message
		if err := json.Unmarshal(rawMessage, &message); err != nil {
			s.logger.Debug("failed to unmarshal message", "client_id", client.ID(), "error", err)
			continue
		}

		res, err := s.router.Handle(ctx, &message)
		if err != nil {
			s.logger.Debug("message handler error",
				"client_id", client.ID(),
				"message_type", message.Type,
				"error", err,
			)
			continue
		}

		if res != nil {
			responseData, err := res.Encode()
			if err != nil {
				s.logger.Error("failed to marshal response", "error", err)
				continue
			}
			if err := client.Send(ctx, responseData); err != nil {
				s.logger.Debug("failed to queue response", "client_id", client.ID(), "error", err)
			}
		}
	}
}
