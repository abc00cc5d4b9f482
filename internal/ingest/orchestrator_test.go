package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/config"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/device"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/timeseries"
)

type stubRegistry struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	touches int
}

func newStubRegistry(devices ...*device.Device) *stubRegistry {
	r := &stubRegistry{devices: make(map[string]*device.Device)}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r
}

func (r *stubRegistry) FindByID(_ context.Context, id string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *stubRegistry) Insert(_ context.Context, d *device.Device) error { return nil }
func (r *stubRegistry) Update(_ context.Context, d *device.Device) error { return nil }

func (r *stubRegistry) TouchStatus(_ context.Context, id string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return repository.ErrNotFound
	}
	r.touches++
	return nil
}

func (r *stubRegistry) MarkOfflineBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *stubRegistry) Delete(_ context.Context, id string) error { return nil }

type stubNotifier struct {
	mu         sync.Mutex
	dispatched []*alert.Alert
}

func (n *stubNotifier) Dispatch(_ context.Context, a *alert.Alert) ([]notification.RecipientResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, a)
	return nil, nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.dispatched)
}

type stubRecorder struct {
	mu          sync.Mutex
	occurrences []digest.Occurrence
}

func (r *stubRecorder) Record(_ context.Context, occ digest.Occurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occurrences = append(r.occurrences, occ)
	return nil
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.occurrences)
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		MaxBatchSize:       10,
		MaxTimestampDrift:  5 * time.Minute,
		HistorySampleEvery: 3,
		StatusThrottle:     time.Minute,
		DebounceTTL:        time.Hour,
		DebounceMaxSize:    100,
		CounterTTL:         time.Hour,
		CounterMaxSize:     100,
		TrendWindow:        time.Hour,
		TrendMinSamples:    3,
		TrendThresholdPct:  20,
	}
}

type fixture struct {
	orch     *Orchestrator
	registry *stubRegistry
	store    *timeseries.MemoryStore
	alerts   *alert.MemoryRepository
	notifier *stubNotifier
	recorder *stubRecorder
}

func newFixture(t *testing.T, cfg config.IngestConfig, devices ...*device.Device) *fixture {
	t.Helper()

	registry := newStubRegistry(devices...)
	store := timeseries.NewMemoryStore()
	alerts := alert.NewMemoryRepository()
	notifier := &stubNotifier{}
	recorder := &stubRecorder{}
	tracker := device.NewTracker(registry, cfg.StatusThrottle, 100)

	orch := NewOrchestrator(cfg, registry, tracker, store, alerts, notifier, recorder, nil)
	return &fixture{
		orch:     orch,
		registry: registry,
		store:    store,
		alerts:   alerts,
		notifier: notifier,
		recorder: recorder,
	}
}

func placedDevice(id string) *device.Device {
	return &device.Device{
		ID:       id,
		Name:     "Tank " + id,
		Location: "building A",
		Status:   device.StatusOnline,
	}
}

func envelope(t *testing.T, deviceID string, payloads ...telemetry.ReadingPayload) []byte {
	t.Helper()

	env := telemetry.Envelope{DeviceID: deviceID}
	if len(payloads) == 1 {
		env.Reading = &payloads[0]
	} else {
		env.Readings = payloads
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func f64(v float64) *float64 { return &v }

func TestProcessMessageStoresLatestReading(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(2.1), PH: f64(7.2)})
	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	latest, err := f.store.Latest(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Turbidity == nil || *latest.Turbidity != 2.1 {
		t.Errorf("expected stored turbidity 2.1, got %v", latest.Turbidity)
	}
	if f.notifier.count() != 0 {
		t.Errorf("expected no alerts for in-band reading, got %d dispatches", f.notifier.count())
	}
}

func TestProcessMessageDropsMalformedInput(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	cases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not json")},
		{"bad device id", envelope(t, "dev 1!", telemetry.ReadingPayload{PH: f64(7)})},
		{"unknown device", envelope(t, "ghost", telemetry.ReadingPayload{PH: f64(7)})},
		{"empty batch", envelope(t, "dev-1")},
		{"out of range value", envelope(t, "dev-1", telemetry.ReadingPayload{PH: f64(15)})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.orch.ProcessMessage(context.Background(), tc.data); err != nil {
				t.Errorf("expected drop without redelivery, got error: %v", err)
			}
		})
	}

	if _, err := f.store.Latest(context.Background(), "dev-1"); err == nil {
		t.Error("expected no reading stored for dropped messages")
	}
}

func TestProcessMessageRejectsOversizedBatch(t *testing.T) {
	cfg := testIngestConfig()
	cfg.MaxBatchSize = 2
	f := newFixture(t, cfg, placedDevice("dev-1"))

	payloads := []telemetry.ReadingPayload{
		{PH: f64(7)}, {PH: f64(7.1)}, {PH: f64(7.2)},
	}
	if err := f.orch.ProcessMessage(context.Background(), envelope(t, "dev-1", payloads...)); err != nil {
		t.Fatalf("expected oversized batch dropped without redelivery, got %v", err)
	}
	if _, err := f.store.Latest(context.Background(), "dev-1"); err == nil {
		t.Error("expected oversized batch to store nothing")
	}
}

func TestUnplacedDeviceGetsStatusOnlyProcessing(t *testing.T) {
	dev := placedDevice("dev-1")
	dev.Location = ""
	f := newFixture(t, testIngestConfig(), dev)

	msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(50)})
	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if f.registry.touches != 1 {
		t.Errorf("expected one status touch, got %d", f.registry.touches)
	}
	if _, err := f.store.Latest(context.Background(), "dev-1"); err == nil {
		t.Error("expected no reading stored for unplaced device")
	}
	if f.notifier.count() != 0 {
		t.Errorf("expected no alerts for unplaced device, got %d", f.notifier.count())
	}
}

func TestHistorySampling(t *testing.T) {
	cfg := testIngestConfig()
	cfg.HistorySampleEvery = 3
	f := newFixture(t, cfg, placedDevice("dev-1"))

	for i := 0; i < 7; i++ {
		msg := envelope(t, "dev-1", telemetry.ReadingPayload{PH: f64(7.0 + float64(i)*0.01)})
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("ProcessMessage %d: %v", i, err)
		}
	}

	history, err := f.store.History(context.Background(), "dev-1", telemetry.ParameterPH, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// Readings 1, 4 and 7 are sampled
	if len(history) != 3 {
		t.Errorf("expected 3 sampled history points out of 7 readings, got %d", len(history))
	}
}

func TestThresholdBreachCreatesAlertAndNotifies(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(12)})
	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	active, err := f.alerts.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	if active[0].Severity != telemetry.SeverityCritical {
		t.Errorf("expected CRITICAL for turbidity 12, got %s", active[0].Severity)
	}
	if f.notifier.count() != 1 {
		t.Errorf("expected 1 dispatch, got %d", f.notifier.count())
	}
}

func TestRepeatBreachInsideDebounceGoesToDigest(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	for i := 0; i < 3; i++ {
		msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(12)})
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("ProcessMessage %d: %v", i, err)
		}
	}

	active, err := f.alerts.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected repeats to dedup into 1 active alert, got %d", len(active))
	}
	if f.notifier.count() != 1 {
		t.Errorf("expected only the first breach to notify, got %d dispatches", f.notifier.count())
	}
	if f.recorder.count() != 2 {
		t.Errorf("expected 2 digest occurrences for suppressed repeats, got %d", f.recorder.count())
	}
}

func TestRepeatBreachAfterDebounceExpiryRenotifies(t *testing.T) {
	cfg := testIngestConfig()
	cfg.DebounceTTL = 30 * time.Millisecond
	f := newFixture(t, cfg, placedDevice("dev-1"))

	msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(12)})
	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage after expiry: %v", err)
	}

	if f.notifier.count() != 2 {
		t.Errorf("expected re-notification after debounce expiry, got %d dispatches", f.notifier.count())
	}
	if f.recorder.count() != 0 {
		t.Errorf("expected no digest occurrences when re-notifying, got %d", f.recorder.count())
	}
}

func TestMultiParameterBreachMarksOccurrences(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(12), PH: f64(9.5)})

	// First message creates both alerts, second folds into digests
	for i := 0; i < 2; i++ {
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("ProcessMessage %d: %v", i, err)
		}
	}

	if f.recorder.count() != 2 {
		t.Fatalf("expected 2 digest occurrences, got %d", f.recorder.count())
	}
	for _, occ := range f.recorder.occurrences {
		if !occ.MultiParam {
			t.Errorf("expected %s occurrence flagged multi-parameter", occ.Parameter)
		}
	}
}

func TestTrendAlertFromHistory(t *testing.T) {
	cfg := testIngestConfig()
	cfg.HistorySampleEvery = 1
	f := newFixture(t, cfg, placedDevice("dev-1"))

	// Stable baseline well inside the threshold band
	for i := 0; i < 4; i++ {
		msg := envelope(t, "dev-1", telemetry.ReadingPayload{TDS: f64(200)})
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("baseline ProcessMessage %d: %v", i, err)
		}
	}

	// 50% above the baseline mean, still below the warning threshold
	msg := envelope(t, "dev-1", telemetry.ReadingPayload{TDS: f64(300)})
	if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	active, err := f.alerts.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 trend alert, got %d active alerts", len(active))
	}
	if active[0].AlertType != alert.AlertTypeTrend {
		t.Errorf("expected TREND alert, got %s", active[0].AlertType)
	}
	if active[0].TrendDirection != telemetry.TrendIncreasing {
		t.Errorf("expected increasing trend, got %s", active[0].TrendDirection)
	}
}

func TestBatchProcessesEveryReading(t *testing.T) {
	cfg := testIngestConfig()
	cfg.HistorySampleEvery = 1
	f := newFixture(t, cfg, placedDevice("dev-1"))

	var payloads []telemetry.ReadingPayload
	for i := 0; i < 5; i++ {
		payloads = append(payloads, telemetry.ReadingPayload{PH: f64(7.0 + float64(i)*0.02)})
	}
	if err := f.orch.ProcessMessage(context.Background(), envelope(t, "dev-1", payloads...)); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	history, err := f.store.History(context.Background(), "dev-1", telemetry.ParameterPH, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("expected all 5 batch readings in history, got %d", len(history))
	}
}

func TestBatchSkipsInvalidReadingsAndKeepsRest(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	payloads := []telemetry.ReadingPayload{
		{PH: f64(7.1)},
		{PH: f64(20)},
		{PH: f64(7.3)},
	}
	if err := f.orch.ProcessMessage(context.Background(), envelope(t, "dev-1", payloads...)); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	latest, err := f.store.Latest(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.PH == nil || *latest.PH != 7.3 {
		t.Errorf("expected last valid reading 7.3 stored, got %v", latest.PH)
	}
}

func TestStatusTouchThrottled(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	for i := 0; i < 5; i++ {
		msg := envelope(t, "dev-1", telemetry.ReadingPayload{PH: f64(7)})
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("ProcessMessage %d: %v", i, err)
		}
	}

	if f.registry.touches != 1 {
		t.Errorf("expected a single throttled status write, got %d", f.registry.touches)
	}
}

func TestDistinctAlertKeysDoNotShareDebounce(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"), placedDevice("dev-2"))

	for _, id := range []string{"dev-1", "dev-2"} {
		msg := envelope(t, id, telemetry.ReadingPayload{Turbidity: f64(12)})
		if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
			t.Fatalf("ProcessMessage %s: %v", id, err)
		}
	}

	if f.notifier.count() != 2 {
		t.Errorf("expected each device to notify independently, got %d dispatches", f.notifier.count())
	}
}

func TestProcessMessageIsConcurrencySafe(t *testing.T) {
	f := newFixture(t, testIngestConfig(), placedDevice("dev-1"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := envelope(t, "dev-1", telemetry.ReadingPayload{Turbidity: f64(12 + float64(i))})
			if err := f.orch.ProcessMessage(context.Background(), msg); err != nil {
				t.Errorf("ProcessMessage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	active, err := f.alerts.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected concurrent breaches to dedup into 1 alert, got %d", len(active))
	}
}
