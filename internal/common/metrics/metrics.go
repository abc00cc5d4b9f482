// Package metrics defines Prometheus metrics for the ingestion pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics

	// ReadingsProcessed tracks readings by outcome
	ReadingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "ingest",
			Name:      "readings_processed_total",
			Help:      "Total sensor readings processed",
		},
		[]string{"result"}, // result: accepted, rejected, skipped, retried
	)

	// ReadingProcessingDuration tracks per-reading pipeline latency
	ReadingProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "puretrack",
			Subsystem: "ingest",
			Name:      "processing_duration_seconds",
			Help:      "Time to process a sensor reading end to end",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BatchSize tracks inbound batch sizes
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "puretrack",
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Readings per inbound envelope",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// HistoryWrites tracks sampled history appends
	HistoryWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "timeseries",
			Name:      "history_writes_total",
			Help:      "Total sampled history appends",
		},
	)

	// Alert metrics

	// AlertsCreated tracks alerts created by type and severity
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total alerts created",
		},
		[]string{"alert_type", "severity"},
	)

	// AlertsDeduplicated tracks createIfAbsent duplicate outcomes
	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "alerts",
			Name:      "deduplicated_total",
			Help:      "Total alert creations suppressed by an existing active alert",
		},
	)

	// Notification metrics

	// NotificationSends tracks outbound sends by result
	NotificationSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Total outbound notification sends",
		},
		[]string{"result"}, // result: success, failure, short_circuit, rate_limited
	)

	// NotificationSendDuration tracks outbound send latency
	NotificationSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "puretrack",
			Subsystem: "notify",
			Name:      "send_duration_seconds",
			Help:      "Outbound send duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// BreakerState tracks circuit breaker state
	// 0 = closed (healthy), 1 = open (tripped), 2 = half-open (probing)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "puretrack",
			Subsystem: "notify",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// BreakerTrips counts open transitions
	BreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "notify",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total circuit breaker open transitions",
		},
		[]string{"name"},
	)

	// Digest metrics

	// DigestCycles counts scheduler cycles
	DigestCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "digest",
			Name:      "cycles_total",
			Help:      "Total digest scheduler cycles",
		},
	)

	// DigestSends tracks digest sends by result
	DigestSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "digest",
			Name:      "sends_total",
			Help:      "Total digest sends",
		},
		[]string{"result"}, // result: success, failure
	)

	// DigestsEligible tracks eligible digests per cycle
	DigestsEligible = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "puretrack",
			Subsystem: "digest",
			Name:      "eligible",
			Help:      "Digests eligible in the last scheduler cycle",
		},
	)

	// Cache metrics

	// CacheSize tracks bounded cache sizes
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "puretrack",
			Subsystem: "cache",
			Name:      "size",
			Help:      "Entries currently held by a bounded cache",
		},
		[]string{"cache"},
	)

	// CacheEvictions counts size-based evictions
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total size-based cache evictions",
		},
		[]string{"cache"},
	)

	// Device metrics

	// DeviceStatusWrites counts throttled status refreshes that hit storage
	DeviceStatusWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "devices",
			Name:      "status_writes_total",
			Help:      "Total device status writes that passed the throttle",
		},
	)

	// DevicesMarkedOffline counts offline sweep transitions
	DevicesMarkedOffline = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "puretrack",
			Subsystem: "devices",
			Name:      "marked_offline_total",
			Help:      "Total devices marked offline by the sweep",
		},
	)
)

// Circuit breaker state values for the BreakerState gauge
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
