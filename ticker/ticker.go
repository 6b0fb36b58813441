// Package ticker broadcasts the current time to every connection at a fixed
// cadence.
package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/internal/metrics"
	"github.com/jonboulle/clockwork"
)

const DefaultInterval = time.Second

// Broadcaster is the fan-out surface the ticker publishes through.
type Broadcaster interface {
	Broadcast(message []byte) error
}

// Service fires a time-update event every interval while running. Start and
// Stop are safe to call in any order and any number of times; at most one
// tick stream is ever active.
type Service struct {
	broadcaster Broadcaster
	clock       clockwork.Clock
	interval    time.Duration
	logger      *logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(broadcaster Broadcaster, clock clockwork.Clock, interval time.Duration, logger *logging.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Service{
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
		logger:      logger,
	}
}

// Start begins the tick stream. Calling Start while running is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("tick service started", "interval", s.interval)
}

// Stop cancels the tick stream. No tick fires after Stop returns; an
// in-flight fire may complete first. Calling Stop while stopped is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("tick service stopped")
}

// Running reports whether the tick stream is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the configured tick cadence.
func (s *Service) Interval() time.Duration {
	return s.interval
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	t := s.clock.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.fire()
		}
	}
}

func (s *Service) fire() {
	now := s.clock.Now()

	msg, err := domain.NewMessage(domain.MessageTypeTimeUpdate, domain.TimeUpdatePayload{
		Time:      now.UTC().Format(time.RFC3339Nano),
		Timestamp: now.UnixMilli(),
		Formatted: now.Format(time.RFC1123),
	})
	if err != nil {
		s.logger.Error("failed to build time update", "error", err)
		return
	}

	data, err := msg.Encode()
	if err != nil {
		s.logger.Error("failed to encode time update", "error", err)
		return
	}

	if err := s.broadcaster.Broadcast(data); err != nil {
		s.logger.Warn("time update broadcast failed", "error", err)
		return
	}

	metrics.TicksFired.Inc()
}
