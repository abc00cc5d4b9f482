package timeseries

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

const influxMeasurement = "water_quality"

// InfluxStore persists readings as InfluxDB points. Latest and history
// are served with Flux queries; the snapshot/history split collapses to
// a single write because Influx indexes by time natively.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// InfluxConfig holds configuration for the InfluxDB store
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewInfluxStore creates an InfluxDB-backed time-series store
func NewInfluxStore(cfg *InfluxConfig) *InfluxStore {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}
}

// WriteLatest writes the reading as a point. Influx keeps every point,
// so the latest snapshot is just the newest one.
func (s *InfluxStore) WriteLatest(ctx context.Context, reading *telemetry.SensorReading) error {
	return s.writeAPI.WritePoint(ctx, s.buildPoint(reading))
}

// WriteHistory is a no-op beyond WriteLatest: the point written there
// already carries the full history record.
func (s *InfluxStore) WriteHistory(ctx context.Context, reading *telemetry.SensorReading) error {
	return nil
}

func (s *InfluxStore) buildPoint(reading *telemetry.SensorReading) *write.Point {
	tags := map[string]string{"deviceId": reading.DeviceID}

	fields := make(map[string]interface{}, len(telemetry.Parameters))
	for _, param := range telemetry.Parameters {
		if value, ok := reading.Value(param); ok {
			fields[string(param)] = value
		}
	}

	return write.NewPoint(influxMeasurement, tags, fields, reading.Timestamp)
}

// Latest returns the most recent snapshot for the device
func (s *InfluxStore) Latest(ctx context.Context, deviceID string) (*telemetry.SensorReading, error) {
	query := fmt.Sprintf(`from(bucket: %q)
		|> range(start: -24h)
		|> filter(fn: (r) => r._measurement == %q and r.deviceId == %q)
		|> last()`, s.bucket, influxMeasurement, deviceID)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}
	defer result.Close()

	reading := &telemetry.SensorReading{DeviceID: deviceID}
	found := false
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}

		found = true
		if record.Time().After(reading.Timestamp) {
			reading.Timestamp = record.Time()
		}
		switch telemetry.Parameter(record.Field()) {
		case telemetry.ParameterTurbidity:
			reading.Turbidity = &value
		case telemetry.ParameterTDS:
			reading.TDS = &value
		case telemetry.ParameterPH:
			reading.PH = &value
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read query result: %w", result.Err())
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return reading, nil
}

// History returns points for one parameter since the given time, oldest
// first.
func (s *InfluxStore) History(ctx context.Context, deviceID string, param telemetry.Parameter, since time.Time) ([]telemetry.Point, error) {
	query := fmt.Sprintf(`from(bucket: %q)
		|> range(start: %s)
		|> filter(fn: (r) => r._measurement == %q and r.deviceId == %q and r._field == %q)
		|> sort(columns: ["_time"])`,
		s.bucket, since.UTC().Format(time.RFC3339), influxMeasurement, deviceID, string(param))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer result.Close()

	var points []telemetry.Point
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		points = append(points, telemetry.Point{Value: value, Timestamp: record.Time()})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read query result: %w", result.Err())
	}
	return points, nil
}

// Close shuts down the InfluxDB client
func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
