// Package telemetry defines the sensor reading model, input validation and
// the threshold/trend evaluation logic for water-quality parameters.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Parameter identifies a measured water-quality parameter
type Parameter string

const (
	ParameterTurbidity Parameter = "turbidity"
	ParameterTDS       Parameter = "tds"
	ParameterPH        Parameter = "ph"
)

// Parameters lists all known parameters in evaluation order
var Parameters = []Parameter{ParameterTurbidity, ParameterTDS, ParameterPH}

// Severity grades how far a reading strays from its configured band
type Severity string

const (
	SeverityAdvisory Severity = "ADVISORY"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// TrendDirection reports which way a trending value is moving
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// SensorReading is one validated measurement set from a device.
// Immutable once persisted.
type SensorReading struct {
	DeviceID   string    `json:"deviceId" bson:"deviceId"`
	Turbidity  *float64  `json:"turbidity,omitempty" bson:"turbidity,omitempty"`
	TDS        *float64  `json:"tds,omitempty" bson:"tds,omitempty"`
	PH         *float64  `json:"ph,omitempty" bson:"ph,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}

// Value returns the reading's value for a parameter, if present
func (r *SensorReading) Value(p Parameter) (float64, bool) {
	switch p {
	case ParameterTurbidity:
		if r.Turbidity != nil {
			return *r.Turbidity, true
		}
	case ParameterTDS:
		if r.TDS != nil {
			return *r.TDS, true
		}
	case ParameterPH:
		if r.PH != nil {
			return *r.PH, true
		}
	}
	return 0, false
}

// ReadingPayload is the wire shape of one measurement inside an envelope.
// The timestamp is client-supplied unix milliseconds and may be absent or
// drifted; NormalizeTimestamp clamps it.
type ReadingPayload struct {
	Turbidity *float64 `json:"turbidity,omitempty"`
	TDS       *float64 `json:"tds,omitempty"`
	PH        *float64 `json:"ph,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

// Envelope is one inbound queue message: a single reading or a batch.
type Envelope struct {
	DeviceID string           `json:"deviceId"`
	Reading  *ReadingPayload  `json:"reading,omitempty"`
	Readings []ReadingPayload `json:"readings,omitempty"`
}

// DecodeEnvelope parses an inbound queue message
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrValidation, err)
	}
	return &env, nil
}

// Payloads returns the envelope's readings as a flat slice
func (e *Envelope) Payloads() []ReadingPayload {
	if len(e.Readings) > 0 {
		return e.Readings
	}
	if e.Reading != nil {
		return []ReadingPayload{*e.Reading}
	}
	return nil
}
