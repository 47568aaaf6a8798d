package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/algolens/algolens/internal/model"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id             TEXT PRIMARY KEY,
    correlation_id TEXT NOT NULL,
    owner_id       TEXT NOT NULL,
    algorithm      TEXT NOT NULL,
    language       TEXT NOT NULL,
    code           TEXT,
    input          BLOB,
    status         TEXT NOT NULL,
    timeout_ms     INTEGER,
    output         BLOB,
    error          TEXT,
    duration_ms    INTEGER,
    created_at     DATETIME NOT NULL,
    started_at     DATETIME,
    completed_at   DATETIME
)`

const createStepsTable = `
CREATE TABLE IF NOT EXISTS steps (
    job_id  TEXT NOT NULL,
    seq     INTEGER NOT NULL,
    payload BLOB NOT NULL,
    PRIMARY KEY (job_id, seq)
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createJobsTable, createStepsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.ExecutionJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
			id, correlation_id, owner_id, algorithm, language, code, input,
			status, timeout_ms, output, error, created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.CorrelationID, j.OwnerID, j.Algorithm, j.Language, j.Code, []byte(j.Input),
		j.Status, j.TimeoutMS, []byte(j.Output), j.Error, j.CreatedAt, j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its internal ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ExecutionJob, error) {
	j := &model.ExecutionJob{}
	var input, output []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, correlation_id, owner_id, algorithm, language, code, input,
			status, timeout_ms, output, error, created_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id,
	).Scan(
		&j.ID, &j.CorrelationID, &j.OwnerID, &j.Algorithm, &j.Language, &j.Code, &input,
		&j.Status, &j.TimeoutMS, &output, &j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Input = input
	j.Output = output
	return j, nil
}

// ListJobs returns a paginated list of one owner's jobs ordered by
// created_at DESC, along with the owner's total job count.
func (s *SQLiteStore) ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]*model.JobSummary, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE owner_id = ?", ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, correlation_id, algorithm, language, status, error, created_at, completed_at
		FROM jobs WHERE owner_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.JobSummary
	for rows.Next() {
		j := &model.JobSummary{}
		if err := rows.Scan(
			&j.ID, &j.CorrelationID, &j.Algorithm, &j.Language, &j.Status, &j.Error,
			&j.CreatedAt, &j.CompletedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, total, nil
}

// UpdateJobStatus applies one status transition. The read and the write run
// in a single transaction so a concurrent update cannot slip a job past a
// terminal state: terminal jobs reject further updates with
// ErrAlreadyTerminal, other disallowed transitions with ErrInvalidTransition.
// Transitioning to RUNNING records started_at; terminal transitions record
// completed_at, duration_ms and the result payload.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id, status string, result *model.ExecutionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	var startedAt *time.Time
	err = tx.QueryRowContext(ctx, "SELECT status, started_at FROM jobs WHERE id = ?", id).Scan(&current, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}

	if model.IsTerminal(current) {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, current)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	// ValidTransition only admits RUNNING or a terminal status as target.
	now := time.Now().UTC()
	if status == model.StatusRunning {
		_, err = tx.ExecContext(ctx,
			"UPDATE jobs SET status = ?, started_at = ? WHERE id = ?",
			status, now, id,
		)
	} else {
		var output []byte
		var errMsg string
		if result != nil {
			output = []byte(result.Output)
			errMsg = result.Error
		}
		var durationMS *int64
		if startedAt != nil {
			d := now.Sub(*startedAt).Milliseconds()
			durationMS = &d
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE jobs SET status = ?, output = ?, error = ?, duration_ms = ?, completed_at = ? WHERE id = ?",
			status, output, errMsg, durationMS, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// GetJobStats aggregates one owner's job counts by status and language plus
// the average duration of finished jobs.
func (s *SQLiteStore) GetJobStats(ctx context.Context, ownerID string) (*JobStats, error) {
	stats := &JobStats{
		CountByStatus: make(map[string]int),
		CountByLang:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM jobs WHERE owner_id = ? GROUP BY status", ownerID)
	if err != nil {
		return nil, fmt.Errorf("stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	langRows, err := s.db.QueryContext(ctx,
		"SELECT language, COUNT(*) FROM jobs WHERE owner_id = ? GROUP BY language", ownerID)
	if err != nil {
		return nil, fmt.Errorf("stats by language: %w", err)
	}
	defer langRows.Close()
	for langRows.Next() {
		var lang string
		var n int
		if err := langRows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scan language count: %w", err)
		}
		stats.CountByLang[lang] = n
	}
	if err := langRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM jobs WHERE owner_id = ? AND duration_ms IS NOT NULL",
		ownerID).Scan(&avg); err != nil {
		return nil, fmt.Errorf("stats avg duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

// SaveSteps replaces the stored step trace for a job. Steps are serialized
// individually so partial reads stay cheap and one bad row cannot poison the
// whole trace.
func (s *SQLiteStore) SaveSteps(ctx context.Context, jobID string, steps []model.ExecutionStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM steps WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO steps (job_id, seq, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare step insert: %w", err)
	}
	defer stmt.Close()

	for _, step := range steps {
		payload, err := json.Marshal(step)
		if err != nil {
			return fmt.Errorf("marshal step %d: %w", step.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, jobID, step.ID, payload); err != nil {
			return fmt.Errorf("insert step %d: %w", step.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit steps: %w", err)
	}
	return nil
}

// GetSteps returns the stored step trace for a job in emission order.
func (s *SQLiteStore) GetSteps(ctx context.Context, jobID string) ([]model.ExecutionStep, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM steps WHERE job_id = ? ORDER BY seq", jobID)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	defer rows.Close()

	var steps []model.ExecutionStep
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		var step model.ExecutionStep
		if err := json.Unmarshal(payload, &step); err != nil {
			return nil, fmt.Errorf("unmarshal step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	return steps, nil
}
