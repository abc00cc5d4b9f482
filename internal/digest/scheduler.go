package digest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
)

// SchedulerConfig holds configuration for the digest scheduler
type SchedulerConfig struct {
	// CycleInterval is how often to look for eligible digests
	CycleInterval time.Duration

	// BatchSize is the maximum digests to send per cycle
	BatchSize int

	// Cooldown is how long a sent digest waits before it may send again
	Cooldown time.Duration

	// MaxAttempts caps delivery attempts per digest
	MaxAttempts int

	// BaseURL is the public address used in acknowledgement links
	BaseURL string
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		CycleInterval: 15 * time.Minute,
		BatchSize:     50,
		Cooldown:      24 * time.Hour,
		MaxAttempts:   3,
		BaseURL:       "http://localhost:8080",
	}
}

// Scheduler periodically sends eligible digests
type Scheduler struct {
	digests     Repository
	subscribers notification.SubscriberRepository
	sender      notification.Sender
	config      *SchedulerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a digest scheduler
func NewScheduler(digests Repository, subscribers notification.SubscriberRepository, sender notification.Sender, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		digests:     digests,
		subscribers: subscribers,
		sender:      sender,
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Name returns the service name
func (s *Scheduler) Name() string { return "digest-scheduler" }

// Health reports scheduler liveness
func (s *Scheduler) Health() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return nil
	}
}

// Start starts the cycle loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.cycleLoop()

	slog.Info("Digest scheduler started", "interval", s.config.CycleInterval, "batchSize", s.config.BatchSize)
	return nil
}

// Stop stops the cycle loop
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	s.wg.Wait()
	slog.Info("Digest scheduler stopped")
	return nil
}

func (s *Scheduler) cycleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
			if err := s.Cycle(ctx); err != nil {
				slog.Error("Digest cycle failed", "error", err)
			}
			cancel()
		}
	}
}

// Cycle finds eligible digests and sends each one. A digest that fails
// keeps its attempt budget until it runs out.
func (s *Scheduler) Cycle(ctx context.Context) error {
	metrics.DigestCycles.Inc()

	now := time.Now()
	eligible, err := s.digests.FindEligible(ctx, now, s.config.MaxAttempts, int64(s.config.BatchSize))
	if err != nil {
		return err
	}
	metrics.DigestsEligible.Set(float64(len(eligible)))
	if len(eligible) == 0 {
		return nil
	}

	sent := 0
	for _, d := range eligible {
		if err := s.send(ctx, d); err != nil {
			metrics.DigestSends.WithLabelValues("failure").Inc()
			slog.Warn("Digest delivery failed", "digestId", d.ID, "recipient", d.Recipient, "error", err)
			if markErr := s.digests.MarkFailed(ctx, d.ID); markErr != nil {
				slog.Error("Failed to record digest failure", "digestId", d.ID, "error", markErr)
			}
			continue
		}

		metrics.DigestSends.WithLabelValues("success").Inc()
		if err := s.digests.MarkSent(ctx, d.ID, now.Add(s.config.Cooldown)); err != nil {
			slog.Error("Failed to record digest send", "digestId", d.ID, "error", err)
		}
		sent++
	}

	slog.Info("Digest cycle complete", "eligible", len(eligible), "sent", sent)
	return nil
}

func (s *Scheduler) send(ctx context.Context, d *AlertDigest) error {
	sub, err := s.subscribers.FindByID(ctx, d.Recipient)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Recipient deleted since accumulation; burn the attempt
			return errors.New("recipient no longer exists")
		}
		return err
	}
	if !sub.NotificationsEnabled {
		return errors.New("recipient disabled notifications")
	}

	msg := FormatDigest(d, s.config.BaseURL)
	return s.sender.Send(ctx, sub, msg)
}
