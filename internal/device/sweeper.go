package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
)

// SweeperConfig holds configuration for the offline sweeper
type SweeperConfig struct {
	// Interval is how often to scan for silent devices
	Interval time.Duration

	// OfflineAfter is how long a device may stay silent before it is
	// marked offline
	OfflineAfter time.Duration
}

// DefaultSweeperConfig returns sensible defaults
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:     time.Minute,
		OfflineAfter: 10 * time.Minute,
	}
}

// Sweeper periodically marks silent devices offline
type Sweeper struct {
	registry Registry
	config   *SweeperConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates an offline sweeper
func NewSweeper(registry Registry, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		registry: registry,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Name returns the service name
func (s *Sweeper) Name() string { return "device-sweeper" }

// Health reports sweeper liveness
func (s *Sweeper) Health() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return nil
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.sweepLoop()

	slog.Info("Device sweeper started", "interval", s.config.Interval, "offlineAfter", s.config.OfflineAfter)
	return nil
}

// Stop stops the sweep loop
func (s *Sweeper) Stop(ctx context.Context) error {
	s.cancel()
	s.wg.Wait()
	slog.Info("Device sweeper stopped")
	return nil
}

func (s *Sweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.config.OfflineAfter)
	count, err := s.registry.MarkOfflineBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to sweep silent devices", "error", err)
		return
	}

	if count > 0 {
		metrics.DevicesMarkedOffline.Add(float64(count))
		slog.Info("Marked silent devices offline", "count", count, "cutoff", cutoff)
	}
}
