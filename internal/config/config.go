package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PureTrack ingestion worker
type Config struct {
	// HTTP server configuration (health, metrics, digest ack)
	HTTP HTTPConfig

	// MongoDB configuration
	MongoDB MongoDBConfig

	// Redis configuration (time-series latest/history)
	Redis RedisConfig

	// Influx configuration (alternative time-series backend)
	Influx InfluxConfig

	// Timeseries selects the backend: "redis" or "influx"
	Timeseries string

	// Queue configuration (NATS, optionally embedded)
	Queue QueueConfig

	// Ingest pipeline configuration
	Ingest IngestConfig

	// Notifier configuration (SMTP + breaker + rate limit)
	Notifier NotifierConfig

	// Digest scheduler configuration
	Digest DigestConfig

	// Data directory for embedded services
	DataDir string

	// Development mode
	DevMode bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// InfluxConfig holds InfluxDB connection configuration
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// QueueConfig holds telemetry queue configuration
type QueueConfig struct {
	// Embedded runs an in-process NATS server (dev mode)
	Embedded bool

	URL          string
	StreamName   string
	ConsumerName string
	Subject      string
	AckWait      time.Duration
	MaxDeliver   int
}

// IngestConfig holds ingestion pipeline tuning
type IngestConfig struct {
	// MaxBatchSize caps readings per inbound envelope
	MaxBatchSize int

	// MaxTimestampDrift clamps client timestamps to server time
	MaxTimestampDrift time.Duration

	// HistorySampleEvery appends every Nth accepted reading to history
	HistorySampleEvery int

	// StatusThrottle bounds device status write frequency
	StatusThrottle time.Duration

	// OfflineAfter marks a device offline when lastSeen is older than this
	OfflineAfter time.Duration

	// DebounceTTL is the alert-notification cooldown window
	DebounceTTL time.Duration

	// DebounceMaxSize bounds the debounce cache
	DebounceMaxSize int

	// CounterTTL is the lifetime of per-device reading counters
	CounterTTL time.Duration

	// CounterMaxSize bounds the reading-counter cache
	CounterMaxSize int

	// TrendWindow is how far back trend analysis looks
	TrendWindow time.Duration

	// TrendMinSamples is the minimum history points for a trend
	TrendMinSamples int

	// TrendThresholdPct is the percent change that flags a trend
	TrendThresholdPct float64
}

// NotifierConfig holds outbound notification configuration
type NotifierConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
	Enabled     bool

	// SendTimeout is the per-send hard timeout enforced by the breaker
	SendTimeout time.Duration

	// Breaker settings for the outbound send path
	BreakerFailureThreshold float64
	BreakerMinimumCalls     uint32
	BreakerResetTimeout     time.Duration
	BreakerHalfOpenCalls    uint32

	// RatePerSecond limits outbound sends; Burst is the limiter burst size
	RatePerSecond float64
	Burst         int
}

// DigestConfig holds digest scheduler configuration
type DigestConfig struct {
	// CycleInterval is how often the scheduler drains eligible digests
	CycleInterval time.Duration

	// BatchSize is the maximum digests handled per cycle
	BatchSize int

	// Cooldown is applied after a successful send
	Cooldown time.Duration

	// MaxAttempts caps send attempts per digest
	MaxAttempts int

	// MaxItems caps items per digest (oldest dropped on overflow)
	MaxItems int

	// BaseURL is the public address used in acknowledgement links
	BaseURL string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port: getEnvInt("HTTP_PORT", 8080),
		},

		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0&directConnection=true"),
			Database: getEnv("MONGODB_DATABASE", "puretrack"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Influx: InfluxConfig{
			URL:    getEnv("INFLUX_URL", "http://localhost:8086"),
			Token:  getEnv("INFLUX_TOKEN", ""),
			Org:    getEnv("INFLUX_ORG", "puretrack"),
			Bucket: getEnv("INFLUX_BUCKET", "telemetry"),
		},

		Timeseries: getEnv("TIMESERIES_BACKEND", "redis"),

		Queue: QueueConfig{
			Embedded:     getEnvBool("QUEUE_EMBEDDED", true),
			URL:          getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName:   getEnv("NATS_STREAM", "TELEMETRY"),
			ConsumerName: getEnv("NATS_CONSUMER", "puretrack-ingest"),
			Subject:      getEnv("NATS_SUBJECT", "telemetry.readings"),
			AckWait:      getEnvDuration("NATS_ACK_WAIT", 2*time.Minute),
			MaxDeliver:   getEnvInt("NATS_MAX_DELIVER", 5),
		},

		Ingest: IngestConfig{
			MaxBatchSize:       getEnvInt("INGEST_MAX_BATCH_SIZE", 100),
			MaxTimestampDrift:  getEnvDuration("INGEST_MAX_TIMESTAMP_DRIFT", 10*time.Minute),
			HistorySampleEvery: getEnvInt("INGEST_HISTORY_SAMPLE_EVERY", 5),
			StatusThrottle:     getEnvDuration("INGEST_STATUS_THROTTLE", 1*time.Minute),
			OfflineAfter:       getEnvDuration("INGEST_OFFLINE_AFTER", 10*time.Minute),
			DebounceTTL:        getEnvDuration("INGEST_DEBOUNCE_TTL", 30*time.Minute),
			DebounceMaxSize:    getEnvInt("INGEST_DEBOUNCE_MAX_SIZE", 10000),
			CounterTTL:         getEnvDuration("INGEST_COUNTER_TTL", 24*time.Hour),
			CounterMaxSize:     getEnvInt("INGEST_COUNTER_MAX_SIZE", 10000),
			TrendWindow:        getEnvDuration("INGEST_TREND_WINDOW", 1*time.Hour),
			TrendMinSamples:    getEnvInt("INGEST_TREND_MIN_SAMPLES", 3),
			TrendThresholdPct:  getEnvFloat("INGEST_TREND_THRESHOLD_PCT", 15),
		},

		Notifier: NotifierConfig{
			SMTPHost:    getEnv("SMTP_HOST", "localhost"),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			FromAddress: getEnv("SMTP_FROM", "alerts@puretrack.local"),
			Enabled:     getEnvBool("NOTIFICATIONS_ENABLED", true),

			SendTimeout:             getEnvDuration("NOTIFIER_SEND_TIMEOUT", 10*time.Second),
			BreakerFailureThreshold: getEnvFloat("NOTIFIER_BREAKER_FAILURE_THRESHOLD", 0.5),
			BreakerMinimumCalls:     uint32(getEnvInt("NOTIFIER_BREAKER_MINIMUM_CALLS", 5)),
			BreakerResetTimeout:     getEnvDuration("NOTIFIER_BREAKER_RESET_TIMEOUT", 30*time.Second),
			BreakerHalfOpenCalls:    uint32(getEnvInt("NOTIFIER_BREAKER_HALF_OPEN_CALLS", 2)),

			RatePerSecond: getEnvFloat("NOTIFIER_RATE_PER_SECOND", 5),
			Burst:         getEnvInt("NOTIFIER_BURST", 10),
		},

		Digest: DigestConfig{
			CycleInterval: getEnvDuration("DIGEST_CYCLE_INTERVAL", 15*time.Minute),
			BatchSize:     getEnvInt("DIGEST_BATCH_SIZE", 50),
			Cooldown:      getEnvDuration("DIGEST_COOLDOWN", 24*time.Hour),
			MaxAttempts:   getEnvInt("DIGEST_MAX_ATTEMPTS", 3),
			MaxItems:      getEnvInt("DIGEST_MAX_ITEMS", 10),
			BaseURL:       getEnv("DIGEST_BASE_URL", "http://localhost:8080"),
		},

		DataDir: getEnv("DATA_DIR", "./data"),
		DevMode: getEnvBool("PURETRACK_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
