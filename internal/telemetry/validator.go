package telemetry

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrValidation marks malformed or out-of-range input. Validation failures
// are skipped and logged, never retried.
var ErrValidation = errors.New("validation failed")

// Physical bounds for each parameter. Values outside these are rejected
// outright; the configurable warning/critical bands live in ThresholdConfig.
const (
	TurbidityMin = 0
	TurbidityMax = 1000
	TDSMin       = 0
	TDSMax       = 10000
	PHMin        = 0
	PHMax        = 14
)

// MaxDeviceIDLength bounds device identifiers
const MaxDeviceIDLength = 64

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateDeviceID reports whether id is a well-formed device identifier
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: device id is empty", ErrValidation)
	}
	if len(id) > MaxDeviceIDLength {
		return fmt.Errorf("%w: device id exceeds %d characters", ErrValidation, MaxDeviceIDLength)
	}
	if !deviceIDPattern.MatchString(id) {
		return fmt.Errorf("%w: device id contains illegal characters", ErrValidation)
	}
	return nil
}

// ValidateReading checks each present field against its physical bounds.
// Absent fields are not evaluated; partial readings are allowed, but a
// reading with no fields at all is rejected.
func ValidateReading(p ReadingPayload) error {
	if p.Turbidity == nil && p.TDS == nil && p.PH == nil {
		return fmt.Errorf("%w: reading carries no parameters", ErrValidation)
	}
	if p.Turbidity != nil && (*p.Turbidity < TurbidityMin || *p.Turbidity > TurbidityMax) {
		return fmt.Errorf("%w: turbidity %.2f outside [%d, %d]", ErrValidation, *p.Turbidity, TurbidityMin, TurbidityMax)
	}
	if p.TDS != nil && (*p.TDS < TDSMin || *p.TDS > TDSMax) {
		return fmt.Errorf("%w: tds %.2f outside [%d, %d]", ErrValidation, *p.TDS, TDSMin, TDSMax)
	}
	if p.PH != nil && (*p.PH < PHMin || *p.PH > PHMax) {
		return fmt.Errorf("%w: ph %.2f outside [%d, %d]", ErrValidation, *p.PH, PHMin, PHMax)
	}
	return nil
}

// NormalizeTimestamp clamps a client-supplied timestamp to server time.
// A missing timestamp or one drifted beyond maxDrift in either direction is
// replaced with now; drift alone never rejects a reading.
func NormalizeTimestamp(ts *int64, now time.Time, maxDrift time.Duration) time.Time {
	if ts == nil {
		return now
	}

	claimed := time.UnixMilli(*ts)
	if claimed.Before(now.Add(-maxDrift)) || claimed.After(now.Add(maxDrift)) {
		return now
	}
	return claimed
}

// ValidateBatchSize rejects batches exceeding the configured cap.
// Oversized batches are dropped without retry to bound per-invocation cost.
func ValidateBatchSize(n, max int) error {
	if n == 0 {
		return fmt.Errorf("%w: envelope carries no readings", ErrValidation)
	}
	if n > max {
		return fmt.Errorf("%w: batch of %d exceeds cap of %d", ErrValidation, n, max)
	}
	return nil
}
