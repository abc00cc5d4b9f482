package telemetry

import (
	"context"
	"math"
	"time"
)

// Band holds the configured acceptable range for one parameter, with
// warning edges inside critical edges.
type Band struct {
	WarnMin float64 `json:"warnMin"`
	WarnMax float64 `json:"warnMax"`
	CritMin float64 `json:"critMin"`
	CritMax float64 `json:"critMax"`
}

// Midpoint returns the center of the warning band, used to bucket a
// violation as high or low.
func (b Band) Midpoint() float64 {
	return (b.WarnMin + b.WarnMax) / 2
}

// ThresholdConfig maps each parameter to its configured band
type ThresholdConfig map[Parameter]Band

// ThresholdSource supplies the current per-parameter bands
type ThresholdSource interface {
	GetThresholdConfig(ctx context.Context) (ThresholdConfig, error)
}

// StaticThresholds is a ThresholdSource serving a fixed configuration
type StaticThresholds struct {
	cfg ThresholdConfig
}

// NewStaticThresholds creates a fixed threshold source
func NewStaticThresholds(cfg ThresholdConfig) *StaticThresholds {
	if cfg == nil {
		cfg = DefaultThresholds()
	}
	return &StaticThresholds{cfg: cfg}
}

func (s *StaticThresholds) GetThresholdConfig(_ context.Context) (ThresholdConfig, error) {
	return s.cfg, nil
}

// DefaultThresholds returns bands for potable-water monitoring
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		ParameterTurbidity: {WarnMin: 0, WarnMax: 5, CritMin: 0, CritMax: 10},
		ParameterTDS:       {WarnMin: 0, WarnMax: 500, CritMin: 0, CritMax: 1000},
		ParameterPH:        {WarnMin: 6.5, WarnMax: 8.5, CritMin: 6.0, CritMax: 9.0},
	}
}

// ThresholdResult is the outcome of a threshold check
type ThresholdResult struct {
	Exceeded bool

	// Severity escalates with distance past the violated band edge
	Severity Severity

	// ThresholdValue is the violated warning edge
	ThresholdValue float64
}

// warningFraction is how far into the warn-to-critical gap a value must
// stray before an Advisory escalates to a Warning
const warningFraction = 0.2

// CheckThreshold compares value against the parameter's configured band.
// Values past a critical edge are Critical; values past a warning edge
// escalate from Advisory to Warning with distance into the gap.
func CheckThreshold(p Parameter, value float64, cfg ThresholdConfig) ThresholdResult {
	band, ok := cfg[p]
	if !ok {
		return ThresholdResult{}
	}

	switch {
	case value > band.WarnMax:
		sev := SeverityCritical
		if value <= band.CritMax {
			sev = escalate(value-band.WarnMax, band.CritMax-band.WarnMax)
		}
		return ThresholdResult{Exceeded: true, Severity: sev, ThresholdValue: band.WarnMax}

	case value < band.WarnMin:
		sev := SeverityCritical
		if value >= band.CritMin {
			sev = escalate(band.WarnMin-value, band.WarnMin-band.CritMin)
		}
		return ThresholdResult{Exceeded: true, Severity: sev, ThresholdValue: band.WarnMin}
	}

	return ThresholdResult{}
}

// escalate grades a breach by its distance into the warn-to-critical gap
func escalate(over, gap float64) Severity {
	if gap <= 0 {
		return SeverityCritical
	}
	if over/gap >= warningFraction {
		return SeverityWarning
	}
	return SeverityAdvisory
}

// Point is one historical observation for trend analysis
type Point struct {
	Value     float64
	Timestamp time.Time
}

// TrendConfig tunes trend detection
type TrendConfig struct {
	// MinSamples is the minimum history points required
	MinSamples int

	// ThresholdPct is the percent change that flags a trend
	ThresholdPct float64
}

// TrendResult is the outcome of trend analysis
type TrendResult struct {
	HasTrend      bool
	Severity      Severity
	Direction     TrendDirection
	PreviousValue float64
	ChangePct     float64
}

// AnalyzeTrend compares value to the mean of the recent history window and
// flags a trend when the percentage change exceeds the configured
// threshold. Severity scales with magnitude: above 30% Critical, above 20%
// Warning, otherwise Advisory.
func AnalyzeTrend(value float64, history []Point, cfg TrendConfig) TrendResult {
	if len(history) < cfg.MinSamples {
		return TrendResult{}
	}

	var sum float64
	for _, pt := range history {
		sum += pt.Value
	}
	previous := sum / float64(len(history))

	if previous == 0 {
		// No meaningful rate of change from a zero baseline
		return TrendResult{}
	}

	changePct := math.Abs(value-previous) / math.Abs(previous) * 100
	if changePct <= cfg.ThresholdPct {
		return TrendResult{}
	}

	direction := TrendIncreasing
	if value < previous {
		direction = TrendDecreasing
	}

	severity := SeverityAdvisory
	switch {
	case changePct > 30:
		severity = SeverityCritical
	case changePct > 20:
		severity = SeverityWarning
	}

	return TrendResult{
		HasTrend:      true,
		Severity:      severity,
		Direction:     direction,
		PreviousValue: previous,
		ChangePct:     changePct,
	}
}
