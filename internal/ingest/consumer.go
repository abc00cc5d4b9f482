package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/queue"
)

// ConsumerService binds the orchestrator to the telemetry queue. Each
// message is acked once processed; retryable failures are nacked so the
// queue redelivers them.
type ConsumerService struct {
	consumer     queue.Consumer
	orchestrator *Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumerService creates the queue-bound ingestion service
func NewConsumerService(consumer queue.Consumer, orchestrator *Orchestrator) *ConsumerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConsumerService{
		consumer:     consumer,
		orchestrator: orchestrator,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Name returns the service name
func (s *ConsumerService) Name() string { return "telemetry-consumer" }

// Health reports consumer liveness
func (s *ConsumerService) Health() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return nil
	}
}

// Start begins consuming telemetry messages
func (s *ConsumerService) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.run()

	slog.Info("Telemetry consumer started")
	return nil
}

// Stop stops consuming and waits for in-flight messages
func (s *ConsumerService) Stop(ctx context.Context) error {
	s.cancel()
	s.wg.Wait()

	if err := s.consumer.Close(); err != nil {
		slog.Warn("Failed to close queue consumer", "error", err)
	}
	slog.Info("Telemetry consumer stopped")
	return nil
}

func (s *ConsumerService) run() {
	defer s.wg.Done()

	err := s.consumer.Consume(s.ctx, s.handle)
	if err != nil && s.ctx.Err() == nil {
		slog.Error("Telemetry consumption stopped unexpectedly", "error", err)
		s.cancel()
	}
}

func (s *ConsumerService) handle(msg queue.Message) error {
	err := s.orchestrator.ProcessMessage(s.ctx, msg.Data())
	if err != nil {
		slog.Warn("Reading processing failed, requesting redelivery", "messageId", msg.ID(), "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("Failed to nak message", "messageId", msg.ID(), "error", nakErr)
		}
		return err
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to ack message", "messageId", msg.ID(), "error", ackErr)
	}
	return nil
}
