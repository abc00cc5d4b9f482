package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/breaker"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// fakeSender records sends and fails selected recipients
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
}

func (s *fakeSender) Send(ctx context.Context, recipient *Subscriber, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[recipient.ID]; ok {
		return err
	}
	s.sent = append(s.sent, recipient.ID)
	return nil
}

func (s *fakeSender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func testBreaker(t *testing.T) *breaker.Breaker {
	t.Helper()
	return breaker.New(breaker.Config{
		Name:             "test-notifier",
		Timeout:          time.Second,
		FailureThreshold: 0.5,
		MinimumCalls:     100,
		ResetTimeout:     time.Minute,
		HalfOpenCalls:    1,
	})
}

func testConfig() *DispatcherConfig {
	return &DispatcherConfig{
		SendTimeout:   time.Second,
		MaxConcurrent: 4,
		RatePerSecond: 1000,
		Burst:         1000,
	}
}

func newTestAlert(t *testing.T, alerts alert.Repository) *alert.Alert {
	t.Helper()
	a, _, err := alerts.CreateIfAbsent(context.Background(), &alert.Alert{
		DeviceID:       "sensor-1",
		Parameter:      telemetry.ParameterTurbidity,
		AlertType:      alert.AlertTypeThreshold,
		Severity:       telemetry.SeverityWarning,
		Value:          6.2,
		ThresholdValue: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestDispatchNotifiesAllRecipients(t *testing.T) {
	alerts := alert.NewMemoryRepository()
	a := newTestAlert(t, alerts)

	repo := &fakeSubscriberRepo{subs: []*Subscriber{
		{ID: "u1", Email: "u1@example.com", NotificationsEnabled: true},
		{ID: "u2", Email: "u2@example.com", NotificationsEnabled: true},
	}}
	sender := &fakeSender{}
	d := NewDispatcher(NewResolver(repo), sender, alerts, testBreaker(t), testConfig())

	results, err := d.Dispatch(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Outcome != OutcomeSent {
			t.Errorf("recipient %s outcome = %s", res.Subscriber.ID, res.Outcome)
		}
	}

	stored, _ := alerts.FindByID(context.Background(), a.ID)
	if len(stored.NotifiedUsers) != 2 {
		t.Errorf("both users should be recorded, got %v", stored.NotifiedUsers)
	}
}

func TestDispatchToleratesPartialFailure(t *testing.T) {
	alerts := alert.NewMemoryRepository()
	a := newTestAlert(t, alerts)

	repo := &fakeSubscriberRepo{subs: []*Subscriber{
		{ID: "good", Email: "good@example.com", NotificationsEnabled: true},
		{ID: "bad", Email: "bad@example.com", NotificationsEnabled: true},
	}}
	sender := &fakeSender{failFor: map[string]error{"bad": errors.New("mailbox unavailable")}}
	d := NewDispatcher(NewResolver(repo), sender, alerts, testBreaker(t), testConfig())

	results, err := d.Dispatch(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}

	outcomes := make(map[string]Outcome)
	for _, res := range results {
		outcomes[res.Subscriber.ID] = res.Outcome
	}
	if outcomes["good"] != OutcomeSent {
		t.Errorf("good recipient outcome = %s", outcomes["good"])
	}
	if outcomes["bad"] != OutcomeFailed {
		t.Errorf("bad recipient outcome = %s", outcomes["bad"])
	}

	stored, _ := alerts.FindByID(context.Background(), a.ID)
	if len(stored.NotifiedUsers) != 1 || stored.NotifiedUsers[0] != "good" {
		t.Errorf("only the delivered user should be recorded, got %v", stored.NotifiedUsers)
	}
}

func TestDispatchShortCircuitsWhenBreakerOpen(t *testing.T) {
	alerts := alert.NewMemoryRepository()
	a := newTestAlert(t, alerts)

	repo := &fakeSubscriberRepo{subs: []*Subscriber{
		{ID: "u1", Email: "u1@example.com", NotificationsEnabled: true},
	}}
	sender := &fakeSender{failFor: map[string]error{"u1": errors.New("smtp down")}}

	// Trip after two failed calls
	brk := breaker.New(breaker.Config{
		Name:             "tripped-notifier",
		Timeout:          time.Second,
		FailureThreshold: 0.5,
		MinimumCalls:     2,
		ResetTimeout:     time.Minute,
		HalfOpenCalls:    1,
	})
	d := NewDispatcher(NewResolver(repo), sender, alerts, brk, testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	results, err := d.Dispatch(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Outcome != OutcomeShortCircuited {
		t.Errorf("open breaker should short-circuit, got %s", results[0].Outcome)
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	alerts := alert.NewMemoryRepository()
	a := newTestAlert(t, alerts)

	d := NewDispatcher(NewResolver(&fakeSubscriberRepo{}), &fakeSender{}, alerts, testBreaker(t), testConfig())
	results, err := d.Dispatch(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("want no results, got %d", len(results))
	}
}
