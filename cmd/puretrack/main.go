// PureTrack ingestion worker
//
// Consumes water-quality telemetry from the queue, evaluates thresholds
// and trends, raises alerts, sends notifications and daily digests, and
// serves the small HTTP surface (health, metrics, digest ack).

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/api"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/breaker"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/health"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/lifecycle"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/mongo"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/config"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/device"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/ingest"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/queue"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/queue/nats"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/timeseries"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting PureTrack ingestion worker",
		"version", version,
		"build_time", buildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := health.NewChecker()

	// MongoDB
	mongoClient, err := mongo.Connect(ctx, cfg.MongoDB)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()
	checker.AddReadinessCheck(health.MongoDBCheck(func() error {
		return mongoClient.Ping(ctx)
	}))

	if err := mongo.NewIndexInitializer(mongoClient).Initialize(ctx); err != nil {
		slog.Warn("Index initialization incomplete", "error", err)
	}

	// Time-series backend
	store, err := buildTimeseriesStore(cfg, checker)
	if err != nil {
		slog.Error("Failed to initialize time-series store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Telemetry queue
	consumer, queueCleanup, err := buildQueueConsumer(ctx, cfg, checker)
	if err != nil {
		slog.Error("Failed to initialize telemetry queue", "error", err)
		os.Exit(1)
	}
	defer queueCleanup()

	// Repositories
	db := mongoClient.Database()
	registry := device.NewRegistry(db)
	alerts := alert.NewRepository(mongoClient)
	digests := digest.NewRepository(db)
	subscribers := notification.NewSubscriberRepository(db)

	// Notification path
	var sender notification.Sender
	if cfg.Notifier.Enabled {
		sender = notification.NewEmailSender(&notification.EmailConfig{
			SMTPHost:    cfg.Notifier.SMTPHost,
			SMTPPort:    cfg.Notifier.SMTPPort,
			Username:    cfg.Notifier.Username,
			Password:    cfg.Notifier.Password,
			FromAddress: cfg.Notifier.FromAddress,
		})
	} else {
		sender = notification.LogSender{}
	}

	smtpBreaker := breaker.New(breaker.Config{
		Name:             "smtp",
		Timeout:          cfg.Notifier.SendTimeout,
		FailureThreshold: cfg.Notifier.BreakerFailureThreshold,
		MinimumCalls:     cfg.Notifier.BreakerMinimumCalls,
		ResetTimeout:     cfg.Notifier.BreakerResetTimeout,
		HalfOpenCalls:    cfg.Notifier.BreakerHalfOpenCalls,
	})

	dispatcherCfg := notification.DefaultDispatcherConfig()
	dispatcherCfg.SendTimeout = cfg.Notifier.SendTimeout
	dispatcherCfg.RatePerSecond = cfg.Notifier.RatePerSecond
	dispatcherCfg.Burst = cfg.Notifier.Burst
	dispatcher := notification.NewDispatcher(
		notification.NewResolver(subscribers), sender, alerts, smtpBreaker, dispatcherCfg)

	aggregator := digest.NewAggregator(digests, subscribers)

	// Ingestion pipeline
	tracker := device.NewTracker(registry, cfg.Ingest.StatusThrottle, cfg.Ingest.DebounceMaxSize)
	orchestrator := ingest.NewOrchestrator(
		cfg.Ingest, registry, tracker, store, alerts,
		dispatcher, aggregator, telemetry.NewStaticThresholds(telemetry.DefaultThresholds()))
	consumerService := ingest.NewConsumerService(consumer, orchestrator)

	// Background services
	scheduler := digest.NewScheduler(digests, subscribers, sender, &digest.SchedulerConfig{
		CycleInterval: cfg.Digest.CycleInterval,
		BatchSize:     cfg.Digest.BatchSize,
		Cooldown:      cfg.Digest.Cooldown,
		MaxAttempts:   cfg.Digest.MaxAttempts,
		BaseURL:       cfg.Digest.BaseURL,
	})

	sweeper := device.NewSweeper(registry, &device.SweeperConfig{
		Interval:     time.Minute,
		OfflineAfter: cfg.Ingest.OfflineAfter,
	})

	httpService := lifecycle.NewHTTPService("http", &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewRouter(checker, digests),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	if err := lifecycle.Run(ctx, consumerService, scheduler, sweeper, httpService); err != nil {
		slog.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("PureTrack ingestion worker stopped")
}

func buildTimeseriesStore(cfg *config.Config, checker *health.Checker) (timeseries.Store, error) {
	switch cfg.Timeseries {
	case "influx":
		slog.Info("Using InfluxDB time-series backend", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
		return timeseries.NewInfluxStore(&timeseries.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}), nil
	default:
		slog.Info("Using Redis time-series backend", "addr", cfg.Redis.Addr)
		store, err := timeseries.NewRedisStore(&timeseries.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		checker.AddReadinessCheck(health.PingCheck("Redis", func() error {
			return store.Ping(context.Background())
		}))
		return store, nil
	}
}

func buildQueueConsumer(ctx context.Context, cfg *config.Config, checker *health.Checker) (queue.Consumer, func(), error) {
	natsCfg := queue.DefaultConfig().NATS
	natsCfg.URL = cfg.Queue.URL
	natsCfg.StreamName = cfg.Queue.StreamName
	natsCfg.ConsumerName = cfg.Queue.ConsumerName
	natsCfg.AckWait = cfg.Queue.AckWait
	natsCfg.MaxDeliver = cfg.Queue.MaxDeliver

	if cfg.Queue.Embedded {
		embedded, err := nats.NewEmbeddedServer(&nats.EmbeddedConfig{
			DataDir:    filepath.Join(cfg.DataDir, "nats"),
			StreamName: cfg.Queue.StreamName,
			Subjects:   natsCfg.Subjects,
			MaxAge:     natsCfg.MaxAge,
		})
		if err != nil {
			return nil, nil, err
		}
		consumer, err := embedded.CreateConsumer(ctx, cfg.Queue.ConsumerName, cfg.Queue.Subject, &natsCfg)
		if err != nil {
			embedded.Close()
			return nil, nil, err
		}
		checker.AddReadinessCheck(health.NATSCheck(embedded.Connected))
		return consumer, func() { embedded.Close() }, nil
	}

	client, err := nats.NewClient(&natsCfg)
	if err != nil {
		return nil, nil, err
	}
	consumer, err := client.CreateConsumer(ctx, cfg.Queue.ConsumerName, cfg.Queue.Subject)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	checker.AddReadinessCheck(health.NATSCheck(client.Connected))
	return consumer, func() { client.Close() }, nil
}
