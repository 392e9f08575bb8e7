package storage

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// RunStats collects numeric counters reported by a batch job.
type RunStats struct {
	mu     sync.Mutex
	values map[string]float64
}

// Set records a value, replacing any previous one.
func (r *RunStats) Set(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value
}

// Add increments a counter.
func (r *RunStats) Add(key string, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] += delta
}

// Snapshot returns a copy of the collected values.
func (r *RunStats) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}

	return out
}

// JobRun is one recorded execution of a batch job.
type JobRun struct {
	ID         string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	Stats      map[string]float64
}

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Track records a job run around fn: a running row before, then the final status, the
// error text if any and the stats fn reported. The error of fn is returned unchanged.
func (s *Store) Track(ctx context.Context, job string, fn func(ctx context.Context, stats *RunStats) error) error {
	runID := uuid.NewString()
	started := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO job_runs (run_id, job, started_at, status) VALUES (?, ?, ?, ?)`,
		runID, job, started, RunStatusRunning); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to record job start", err)
	}

	stats := &RunStats{values: make(map[string]float64)}
	runErr := fn(ctx, stats)

	status, message := RunStatusSuccess, ""
	if runErr != nil {
		status, message = RunStatusFailed, runErr.Error()
	}

	// the job context may already be canceled; the outcome is still recorded
	finishCtx := context.WithoutCancel(ctx)

	if err := s.finishRun(finishCtx, runID, status, message, stats.Snapshot()); err != nil {
		s.logger.Error("Failed to record job result", zap.String("job", job), zap.Error(err))
	}

	s.logger.Info("Job finished",
		zap.String("job", job),
		zap.String("run_id", runID),
		zap.String("status", status),
		zap.Duration("duration", time.Since(started)),
	)

	return runErr
}

func (s *Store) finishRun(ctx context.Context, runID, status, message string, stats map[string]float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE job_runs SET finished_at = ?, status = ?, error = ? WHERE run_id = ?`,
			time.Now().UTC(), status, message, runID); err != nil {
			return err
		}

		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `INSERT INTO job_stats (run_id, key, value) VALUES (?, ?, ?)`, runID, k, stats[k]); err != nil {
				return err
			}
		}

		return nil
	})
}

// Runs returns the most recent runs of a job, newest first.
func (s *Store) Runs(ctx context.Context, job string, limit int) ([]JobRun, error) {
	sqlStr, args, err := s.sq.Select("run_id", "job", "started_at", "COALESCE(finished_at, started_at)", "status", "COALESCE(error, '')").
		From("job_runs").
		Where("job = ?", job).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build run query", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query runs", err)
	}

	runs := make([]JobRun, 0)

	for rows.Next() {
		var run JobRun
		if err := rows.Scan(&run.ID, &run.Job, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Error); err != nil {
			rows.Close()

			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan run", err)
		}

		runs = append(runs, run)
	}

	rows.Close()

	for i := range runs {
		stats, err := s.runStats(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}

		runs[i].Stats = stats
	}

	return runs, nil
}

func (s *Store) runStats(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM job_stats WHERE run_id = ?`, runID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query run stats", err)
	}
	defer rows.Close()

	stats := make(map[string]float64)

	for rows.Next() {
		var (
			key   string
			value float64
		)

		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan run stat", err)
		}

		stats[key] = value
	}

	return stats, rows.Err()
}
