package config

import (
	"time"

	"github.com/HMasataka/presencehub/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket"`
	Tick      TickConfig      `json:"tick" yaml:"tick"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// WebSocketConfig represents per-connection transport configuration
type WebSocketConfig struct {
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	PongTimeout     time.Duration `json:"pong_timeout" yaml:"pong_timeout"`
	MaxMessageSize  int64         `json:"max_message_size" yaml:"max_message_size"`
	SendBufferSize  int           `json:"send_buffer_size" yaml:"send_buffer_size"`
	InboundRate     float64       `json:"inbound_rate" yaml:"inbound_rate"`
	InboundBurst    int           `json:"inbound_burst" yaml:"inbound_burst"`
	ReadBufferSize  int           `json:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `json:"write_buffer_size" yaml:"write_buffer_size"`
}

// TickConfig represents the periodic time broadcast configuration
type TickConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:    10 * time.Second,
			PongTimeout:     60 * time.Second,
			MaxMessageSize:  64 * 1024,
			SendBufferSize:  256,
			InboundRate:     20,
			InboundBurst:    40,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Tick: TickConfig{
			Interval: time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Tick.Interval <= 0 {
		return NewConfigError("tick.interval", "interval must be positive")
	}

	if c.WebSocket.SendBufferSize <= 0 {
		return NewConfigError("websocket.send_buffer_size", "buffer size must be positive")
	}

	if c.WebSocket.InboundRate <= 0 {
		return NewConfigError("websocket.inbound_rate", "rate must be positive")
	}

	return nil
}
