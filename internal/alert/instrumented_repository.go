package alert

import (
	"context"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

const collectionName = "alerts"

// instrumentedRepository wraps a Repository with metrics and logging
type instrumentedRepository struct {
	inner Repository
}

// newInstrumentedRepository creates an instrumented wrapper around a Repository
func newInstrumentedRepository(inner Repository) Repository {
	return &instrumentedRepository{inner: inner}
}

func (r *instrumentedRepository) FindByID(ctx context.Context, id string) (*Alert, error) {
	return repository.Instrument(ctx, collectionName, "FindByID", func() (*Alert, error) {
		return r.inner.FindByID(ctx, id)
	})
}

func (r *instrumentedRepository) FindActive(ctx context.Context, deviceID string, param telemetry.Parameter, alertType AlertType) (*Alert, error) {
	return repository.Instrument(ctx, collectionName, "FindActive", func() (*Alert, error) {
		return r.inner.FindActive(ctx, deviceID, param, alertType)
	})
}

func (r *instrumentedRepository) FindByDevice(ctx context.Context, deviceID string, limit int64) ([]*Alert, error) {
	return repository.Instrument(ctx, collectionName, "FindByDevice", func() ([]*Alert, error) {
		return r.inner.FindByDevice(ctx, deviceID, limit)
	})
}

func (r *instrumentedRepository) CreateIfAbsent(ctx context.Context, candidate *Alert) (*Alert, bool, error) {
	type result struct {
		alert   *Alert
		created bool
	}

	res, err := repository.Instrument(ctx, collectionName, "CreateIfAbsent", func() (result, error) {
		alert, created, err := r.inner.CreateIfAbsent(ctx, candidate)
		return result{alert, created}, err
	})
	if err != nil {
		return nil, false, err
	}

	if res.created {
		metrics.AlertsCreated.WithLabelValues(string(res.alert.AlertType), string(res.alert.Severity)).Inc()
	} else {
		metrics.AlertsDeduplicated.Inc()
	}
	return res.alert, res.created, nil
}

func (r *instrumentedRepository) UpdateStatus(ctx context.Context, id string, status AlertStatus) (*Alert, error) {
	return repository.Instrument(ctx, collectionName, "UpdateStatus", func() (*Alert, error) {
		return r.inner.UpdateStatus(ctx, id, status)
	})
}

func (r *instrumentedRepository) AppendNotified(ctx context.Context, id string, userIDs []string) error {
	return repository.InstrumentVoid(ctx, collectionName, "AppendNotified", func() error {
		return r.inner.AppendNotified(ctx, id, userIDs)
	})
}
