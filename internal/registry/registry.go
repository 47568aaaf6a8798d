// Package registry tracks execution jobs across two stores: the persistent
// job store holds the records, and a volatile TTL keyspace maps the public
// correlation id to the internal job id. Once the correlation entry expires
// the execution is gone from the outside, whatever state its record is in.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/algolens/algolens/internal/model"
	"github.com/algolens/algolens/internal/store"
)

const (
	corrPrefix   = "corr:"
	statusPrefix = "status:"
)

// ErrNotFound is returned when a correlation id does not resolve, either
// because it never existed or because its TTL expired.
var ErrNotFound = errors.New("unknown execution")

// Registry mediates job creation, lookup and status transitions.
type Registry struct {
	store  store.Store
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Registry. ttl bounds the lifetime of correlation entries;
// it is refreshed on every status transition.
func New(st store.Store, kv KV, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{store: st, kv: kv, ttl: ttl, logger: logger.With("component", "registry")}
}

// Create persists a new job and registers its correlation id in the volatile
// keyspace. The job arrives with request fields populated; Create assigns
// identity, PENDING status and timestamps, and returns the correlation id
// callers use as the public execution id.
func (r *Registry) Create(ctx context.Context, job *model.ExecutionJob) (string, error) {
	job.ID = model.NewID()
	job.CorrelationID = model.NewCorrelationID()
	job.Status = model.StatusPending
	job.CreatedAt = time.Now().UTC()

	if err := r.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	if err := r.kv.SetWithTTL(ctx, corrPrefix+job.CorrelationID, job.ID, r.ttl); err != nil {
		return "", fmt.Errorf("register correlation: %w", err)
	}
	if err := r.kv.SetWithTTL(ctx, statusPrefix+job.CorrelationID, job.Status, r.ttl); err != nil {
		return "", fmt.Errorf("seed status cache: %w", err)
	}
	return job.CorrelationID, nil
}

// Resolve maps a correlation id to the internal job id. Expired entries are
// indistinguishable from ids that never existed.
func (r *Registry) Resolve(ctx context.Context, correlationID string) (string, error) {
	jobID, err := r.kv.Get(ctx, corrPrefix+correlationID)
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve correlation: %w", err)
	}
	return jobID, nil
}

// Get retrieves a job record by its internal id.
func (r *Registry) Get(ctx context.Context, jobID string) (*model.ExecutionJob, error) {
	return r.store.GetJob(ctx, jobID)
}

// GetByCorrelation resolves a correlation id and fetches the job record.
func (r *Registry) GetByCorrelation(ctx context.Context, correlationID string) (*model.ExecutionJob, error) {
	jobID, err := r.Resolve(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return r.store.GetJob(ctx, jobID)
}

// UpdateStatus applies a status transition to the persistent record, then
// refreshes the status cache and realigns the correlation entry's TTL so
// both keys expire together. The persistent store is authoritative: once the
// transition commits, cache refresh failures are logged and swallowed, so a
// nil return always means the record changed state. The status cache may then
// lag until the next transition, which LastStatus callers tolerate.
func (r *Registry) UpdateStatus(ctx context.Context, jobID, status string, result *model.ExecutionResult) error {
	if err := r.store.UpdateJobStatus(ctx, jobID, status, result); err != nil {
		return err
	}

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		r.logger.Warn("failed to reload job after transition", "job_id", jobID, "error", err)
		return nil
	}
	if err := r.kv.SetWithTTL(ctx, statusPrefix+job.CorrelationID, status, r.ttl); err != nil {
		r.logger.Warn("failed to refresh status cache", "job_id", jobID, "error", err)
		return nil
	}
	if err := r.kv.Expire(ctx, corrPrefix+job.CorrelationID, r.ttl); err != nil {
		r.logger.Warn("failed to refresh correlation ttl", "job_id", jobID, "error", err)
	}
	return nil
}

// LastStatus returns the cached status for a correlation id. A miss, expiry
// or keyspace error all read as "no cached status".
func (r *Registry) LastStatus(ctx context.Context, correlationID string) (string, bool) {
	status, err := r.kv.Get(ctx, statusPrefix+correlationID)
	if err != nil {
		return "", false
	}
	return status, true
}
