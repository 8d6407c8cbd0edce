// Package worker runs periodic background jobs of the server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/log"
)

// ExpiredShareSweeper removes shares past their expiry.
type ExpiredShareSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweeperConfig holds configuration for the share sweeper
type SweeperConfig struct {
	// Interval is how often expired shares are removed (default: 1h)
	Interval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: time.Hour}
}

// Sweeper deletes expired shares on a fixed interval. Reads already treat
// expired shares as absent; sweeping only reclaims storage.
type Sweeper struct {
	shares ExpiredShareSweeper
	config SweeperConfig
	logger *slog.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(shares ExpiredShareSweeper, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		shares: shares,
		config: config,
		logger: logger.With(log.FieldComponent, log.ComponentWorker),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("share sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	s.logger.InfoContext(ctx, "Share sweeper started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Share sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Share sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of removed shares.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	start := time.Now()
	n, err := s.shares.SweepExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Expired share sweep failed",
			log.NewFields().WithOperation(log.OpSweep).WithError(err).ToSlice()...)
		return 0
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired shares removed",
			log.FieldOperation, log.OpSweep,
			"removed", n,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
	return n
}
