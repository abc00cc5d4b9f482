package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// RedisStore keeps the latest snapshot as a JSON value and per-parameter
// history in sorted sets scored by unix milliseconds.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	retain  time.Duration
	timeout time.Duration
}

// RedisConfig holds configuration for the Redis time-series store
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (optional)
	Password string

	// DB is the Redis database number
	DB int

	// Prefix is the key prefix (default: "puretrack:")
	Prefix string

	// Retention bounds how much history is kept per parameter
	Retention time.Duration
}

// NewRedisStore creates a Redis time-series store and verifies the
// connection.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.Retention), nil
}

// NewRedisStoreFromClient creates a store from an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "puretrack:"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &RedisStore{
		client:  client,
		prefix:  prefix,
		retain:  retention,
		timeout: 5 * time.Second,
	}
}

// Ping verifies the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) latestKey(deviceID string) string {
	return s.prefix + "latest:" + deviceID
}

func (s *RedisStore) historyKey(deviceID string, param telemetry.Parameter) string {
	return s.prefix + "history:" + deviceID + ":" + string(param)
}

// WriteLatest replaces the latest-reading snapshot for the device
func (s *RedisStore) WriteLatest(ctx context.Context, reading *telemetry.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	if err := s.client.Set(ctx, s.latestKey(reading.DeviceID), data, s.retain).Err(); err != nil {
		return fmt.Errorf("failed to write latest reading: %w", err)
	}
	return nil
}

// WriteHistory appends each present parameter to its sorted set and trims
// entries older than the retention window.
func (s *RedisStore) WriteHistory(ctx context.Context, reading *telemetry.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	score := float64(reading.Timestamp.UnixMilli())
	cutoff := strconv.FormatInt(reading.Timestamp.Add(-s.retain).UnixMilli(), 10)

	pipe := s.client.Pipeline()
	for _, param := range telemetry.Parameters {
		value, ok := reading.Value(param)
		if !ok {
			continue
		}

		key := s.historyKey(reading.DeviceID, param)
		member := fmt.Sprintf("%d:%g", reading.Timestamp.UnixMilli(), value)
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
		pipe.Expire(ctx, key, s.retain)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for the device
func (s *RedisStore) Latest(ctx context.Context, deviceID string) (*telemetry.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.latestKey(deviceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	var reading telemetry.SensorReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("failed to decode reading: %w", err)
	}
	return &reading, nil
}

// History returns points for one parameter since the given time, oldest
// first.
func (s *RedisStore) History(ctx context.Context, deviceID string, param telemetry.Parameter, since time.Time) ([]telemetry.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	members, err := s.client.ZRangeByScore(ctx, s.historyKey(deviceID, param), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	points := make([]telemetry.Point, 0, len(members))
	for _, member := range members {
		pt, ok := decodeMember(member)
		if !ok {
			continue
		}
		points = append(points, pt)
	}
	return points, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeMember(member string) (telemetry.Point, bool) {
	sep := strings.IndexByte(member, ':')
	if sep < 0 {
		return telemetry.Point{}, false
	}

	millis, err := strconv.ParseInt(member[:sep], 10, 64)
	if err != nil {
		return telemetry.Point{}, false
	}
	value, err := strconv.ParseFloat(member[sep+1:], 64)
	if err != nil {
		return telemetry.Point{}, false
	}

	return telemetry.Point{Value: value, Timestamp: time.UnixMilli(millis).UTC()}, true
}
