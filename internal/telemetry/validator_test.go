package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "sensor-001", false},
		{"underscore", "lab_unit_7", false},
		{"alphanumeric", "ABC123", false},
		{"empty", "", true},
		{"spaces", "sensor 001", true},
		{"dots", "sensor.001", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("x", MaxDeviceIDLength+1), true},
		{"max length ok", strings.Repeat("x", MaxDeviceIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDeviceID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name    string
		payload ReadingPayload
		wantErr bool
	}{
		{"all present in range", ReadingPayload{Turbidity: f64(2.5), TDS: f64(300), PH: f64(7.1)}, false},
		{"turbidity only", ReadingPayload{Turbidity: f64(0)}, false},
		{"ph only", ReadingPayload{PH: f64(14)}, false},
		{"no measurements", ReadingPayload{Timestamp: i64(1000)}, true},
		{"turbidity negative", ReadingPayload{Turbidity: f64(-0.1)}, true},
		{"turbidity above max", ReadingPayload{Turbidity: f64(1000.5)}, true},
		{"tds above max", ReadingPayload{TDS: f64(10001)}, true},
		{"ph above max", ReadingPayload{PH: f64(14.1)}, true},
		{"ph negative", ReadingPayload{PH: f64(-1)}, true},
		{"bad value alongside good ones", ReadingPayload{Turbidity: f64(3), PH: f64(15)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReading(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateReading() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	drift := 10 * time.Minute

	t.Run("missing timestamp uses now", func(t *testing.T) {
		got := NormalizeTimestamp(nil, now, drift)
		if !got.Equal(now) {
			t.Errorf("got %v, want %v", got, now)
		}
	})

	t.Run("recent timestamp kept", func(t *testing.T) {
		ts := now.Add(-5 * time.Minute)
		got := NormalizeTimestamp(i64(ts.UnixMilli()), now, drift)
		if !got.Equal(ts) {
			t.Errorf("got %v, want %v", got, ts)
		}
	})

	t.Run("future beyond drift replaced", func(t *testing.T) {
		ts := now.Add(11 * time.Minute)
		got := NormalizeTimestamp(i64(ts.UnixMilli()), now, drift)
		if !got.Equal(now) {
			t.Errorf("got %v, want %v", got, now)
		}
	})

	t.Run("past beyond drift replaced", func(t *testing.T) {
		ts := now.Add(-11 * time.Minute)
		got := NormalizeTimestamp(i64(ts.UnixMilli()), now, drift)
		if !got.Equal(now) {
			t.Errorf("got %v, want %v", got, now)
		}
	})
}

func TestValidateBatchSize(t *testing.T) {
	if err := ValidateBatchSize(0, 100); err == nil {
		t.Error("empty batch should be rejected")
	}
	if err := ValidateBatchSize(101, 100); err == nil {
		t.Error("oversized batch should be rejected")
	}
	if err := ValidateBatchSize(100, 100); err != nil {
		t.Errorf("batch at the cap should pass, got %v", err)
	}
	if err := ValidateBatchSize(1, 100); err != nil {
		t.Errorf("single reading should pass, got %v", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("single reading", func(t *testing.T) {
		env, err := DecodeEnvelope([]byte(`{"deviceId":"sensor-1","reading":{"turbidity":2.5}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		payloads := env.Payloads()
		if len(payloads) != 1 || payloads[0].Turbidity == nil || *payloads[0].Turbidity != 2.5 {
			t.Errorf("unexpected payloads: %+v", payloads)
		}
	})

	t.Run("batch", func(t *testing.T) {
		env, err := DecodeEnvelope([]byte(`{"deviceId":"sensor-1","readings":[{"ph":7.0},{"ph":7.2}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Payloads()) != 2 {
			t.Errorf("want 2 payloads, got %d", len(env.Payloads()))
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"deviceId":`))
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("error should wrap ErrValidation, got %v", err)
		}
	})
}
