package telemetry

import (
	"testing"
	"time"
)

func TestCheckThreshold(t *testing.T) {
	cfg := DefaultThresholds()

	tests := []struct {
		name         string
		param        Parameter
		value        float64
		wantExceeded bool
		wantSeverity Severity
		wantEdge     float64
	}{
		{"turbidity in range", ParameterTurbidity, 3.0, false, "", 0},
		{"turbidity at warn edge", ParameterTurbidity, 5.0, false, "", 0},
		{"turbidity slightly over", ParameterTurbidity, 5.3, true, SeverityAdvisory, 5},
		{"turbidity well over warn", ParameterTurbidity, 6.2, true, SeverityWarning, 5},
		{"turbidity past critical", ParameterTurbidity, 11.0, true, SeverityCritical, 5},
		{"tds in range", ParameterTDS, 450, false, "", 0},
		{"tds over warn", ParameterTDS, 520, true, SeverityAdvisory, 500},
		{"tds deep into gap", ParameterTDS, 700, true, SeverityWarning, 500},
		{"tds past critical", ParameterTDS, 1200, true, SeverityCritical, 500},
		{"ph neutral", ParameterPH, 7.0, false, "", 0},
		{"ph slightly low", ParameterPH, 6.45, true, SeverityAdvisory, 6.5},
		{"ph low into gap", ParameterPH, 6.3, true, SeverityWarning, 6.5},
		{"ph below critical", ParameterPH, 5.5, true, SeverityCritical, 6.5},
		{"ph slightly high", ParameterPH, 8.55, true, SeverityAdvisory, 8.5},
		{"ph above critical", ParameterPH, 9.5, true, SeverityCritical, 8.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckThreshold(tt.param, tt.value, cfg)
			if got.Exceeded != tt.wantExceeded {
				t.Fatalf("Exceeded = %v, want %v", got.Exceeded, tt.wantExceeded)
			}
			if !tt.wantExceeded {
				return
			}
			if got.Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
			if got.ThresholdValue != tt.wantEdge {
				t.Errorf("ThresholdValue = %v, want %v", got.ThresholdValue, tt.wantEdge)
			}
		})
	}

	t.Run("unknown parameter", func(t *testing.T) {
		got := CheckThreshold(Parameter("salinity"), 999, cfg)
		if got.Exceeded {
			t.Error("unconfigured parameter should never exceed")
		}
	})

	t.Run("breach severity is never silent", func(t *testing.T) {
		// A value over the configured max must carry a graded severity,
		// not fall through as a bare advisory default.
		got := CheckThreshold(ParameterTurbidity, 6.2, cfg)
		if !got.Exceeded || got.Severity == SeverityAdvisory {
			t.Errorf("turbidity 6.2 over max 5 should escalate, got %+v", got)
		}
	})
}

func TestMidpoint(t *testing.T) {
	b := Band{WarnMin: 6.5, WarnMax: 8.5}
	if got := b.Midpoint(); got != 7.5 {
		t.Errorf("Midpoint() = %v, want 7.5", got)
	}
}

func TestAnalyzeTrend(t *testing.T) {
	cfg := TrendConfig{MinSamples: 3, ThresholdPct: 15}
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	history := func(vals ...float64) []Point {
		pts := make([]Point, len(vals))
		for i, v := range vals {
			pts[i] = Point{Value: v, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		}
		return pts
	}

	t.Run("too few samples", func(t *testing.T) {
		got := AnalyzeTrend(10, history(5, 5), cfg)
		if got.HasTrend {
			t.Error("two samples should not produce a trend")
		}
	})

	t.Run("stable values", func(t *testing.T) {
		got := AnalyzeTrend(5.2, history(5, 5.1, 4.9), cfg)
		if got.HasTrend {
			t.Errorf("4%% change should stay below the 15%% threshold, got %+v", got)
		}
	})

	t.Run("moderate increase", func(t *testing.T) {
		// mean 5, value 5.9 -> 18% change
		got := AnalyzeTrend(5.9, history(5, 5, 5), cfg)
		if !got.HasTrend {
			t.Fatal("expected a trend")
		}
		if got.Direction != TrendIncreasing {
			t.Errorf("Direction = %s, want increasing", got.Direction)
		}
		if got.Severity != SeverityAdvisory {
			t.Errorf("Severity = %s, want ADVISORY", got.Severity)
		}
		if got.PreviousValue != 5 {
			t.Errorf("PreviousValue = %v, want 5", got.PreviousValue)
		}
	})

	t.Run("sharp increase", func(t *testing.T) {
		// mean 4, value 5 -> 25% change
		got := AnalyzeTrend(5, history(4, 4, 4), cfg)
		if !got.HasTrend || got.Severity != SeverityWarning {
			t.Errorf("25%% change should be WARNING, got %+v", got)
		}
	})

	t.Run("extreme decrease", func(t *testing.T) {
		// mean 8, value 5 -> 37.5% change
		got := AnalyzeTrend(5, history(8, 8, 8), cfg)
		if !got.HasTrend || got.Severity != SeverityCritical {
			t.Errorf("37.5%% change should be CRITICAL, got %+v", got)
		}
		if got.Direction != TrendDecreasing {
			t.Errorf("Direction = %s, want decreasing", got.Direction)
		}
	})

	t.Run("zero baseline", func(t *testing.T) {
		got := AnalyzeTrend(3, history(0, 0, 0), cfg)
		if got.HasTrend {
			t.Error("zero baseline should never flag a trend")
		}
	})
}
