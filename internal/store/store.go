package store

import (
	"context"
	"errors"

	"github.com/algolens/algolens/internal/model"
)

// ErrNotFound is returned when a job is not found.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned when a job status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrAlreadyTerminal is returned when updating a job that has already reached
// a terminal status. Terminal updates are rejected, never silently applied.
var ErrAlreadyTerminal = errors.New("job already in terminal status")

// JobStats holds aggregate execution statistics for one owner.
type JobStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"countByStatus"`
	CountByLang   map[string]int `json:"countByLanguage"`
	AvgDurationMS float64        `json:"avgDurationMs"`
}

// Store defines the persistence operations for execution jobs and their
// step traces.
type Store interface {
	CreateJob(ctx context.Context, j *model.ExecutionJob) error
	GetJob(ctx context.Context, id string) (*model.ExecutionJob, error)
	ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]*model.JobSummary, int, error)
	UpdateJobStatus(ctx context.Context, id, status string, result *model.ExecutionResult) error
	GetJobStats(ctx context.Context, ownerID string) (*JobStats, error)
	SaveSteps(ctx context.Context, jobID string, steps []model.ExecutionStep) error
	GetSteps(ctx context.Context, jobID string) ([]model.ExecutionStep, error)
	Close() error
}
