package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"selene/internal/logging"
)

// Critique job states.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// CritiqueJob is one queued review of a finished turn.
type CritiqueJob struct {
	TurnID       string
	SessionID    string
	UserID       string
	Status       string
	Attempts     int
	Payload      string // JSON snapshot of the turn
	Result       string
	Error        string
	ProcessingMs int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EnqueueCritiqueJob inserts a job keyed by turn id. Re-enqueueing a turn
// that is already present is a no-op; the returned bool reports whether a
// new row was inserted.
func (s *Store) EnqueueCritiqueJob(turnID, sessionID, userID, payload string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO critique_jobs (turn_id, session_id, user_id, payload) VALUES (?, ?, ?, ?)`,
		turnID, sessionID, userID, payload,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue critique job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		logging.StoreDebug("critique job for turn %s already queued", turnID)
	}
	return n > 0, nil
}

// ClaimCritiqueJob moves the oldest queued job to processing and returns
// it, or nil when the queue is empty.
func (s *Store) ClaimCritiqueJob() (*CritiqueJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	job := &CritiqueJob{}
	err = tx.QueryRow(
		`SELECT turn_id, session_id, user_id, status, attempts, payload
		 FROM critique_jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1`, JobQueued,
	).Scan(&job.TurnID, &job.SessionID, &job.UserID, &job.Status, &job.Attempts, &job.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim critique job: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE critique_jobs SET status = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP WHERE turn_id = ?`,
		JobProcessing, job.TurnID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	job.Status = JobProcessing
	job.Attempts++
	return job, nil
}

// ReleaseCritiqueJob returns a claimed job to queued without spending a
// retry attempt. Used when a claimed job is handed back before any work
// started, such as shutdown landing between claim and dispatch.
func (s *Store) ReleaseCritiqueJob(turnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE critique_jobs SET status = ?, attempts = attempts - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE turn_id = ? AND status = ?`,
		JobQueued, turnID, JobProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to release critique job: %w", err)
	}
	return nil
}

// RequeueProcessingCritiqueJobs returns every processing job to queued
// and reports how many rows moved. Workers live in-process, so at queue
// startup any row still marked processing is an attempt stranded by a
// crash; the spent attempt stays counted against the retry budget.
func (s *Store) RequeueProcessingCritiqueJobs() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE critique_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		JobQueued, JobProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue processing critique jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CompleteCritiqueJob records a successful critique result.
func (s *Store) CompleteCritiqueJob(turnID, result string, processingMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE critique_jobs SET status = ?, result = ?, processing_ms = ?, error = NULL, updated_at = CURRENT_TIMESTAMP WHERE turn_id = ?`,
		JobCompleted, result, processingMs, turnID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete critique job: %w", err)
	}
	return nil
}

// FailCritiqueJob records a failed attempt. Jobs under the retry limit go
// back to queued; exhausted jobs land in failed with the final error.
func (s *Store) FailCritiqueJob(turnID, errMsg string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE critique_jobs SET
			status = CASE WHEN attempts >= ? THEN ? ELSE ? END,
			error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE turn_id = ?`,
		maxRetries, JobFailed, JobQueued, errMsg, turnID,
	)
	if err != nil {
		return fmt.Errorf("failed to fail critique job: %w", err)
	}
	return nil
}

// GetCritiqueJob fetches a job by turn id.
func (s *Store) GetCritiqueJob(turnID string) (*CritiqueJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job := &CritiqueJob{}
	var result, errMsg *string
	var procMs *int64
	err := s.db.QueryRow(
		`SELECT turn_id, session_id, user_id, status, attempts, payload, result, error, processing_ms, created_at, updated_at
		 FROM critique_jobs WHERE turn_id = ?`, turnID,
	).Scan(&job.TurnID, &job.SessionID, &job.UserID, &job.Status, &job.Attempts,
		&job.Payload, &result, &errMsg, &procMs, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get critique job: %w", err)
	}
	if result != nil {
		job.Result = *result
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	if procMs != nil {
		job.ProcessingMs = *procMs
	}
	return job, nil
}

// CountCritiqueJobs returns the number of jobs in the given status.
func (s *Store) CountCritiqueJobs(status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM critique_jobs WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count critique jobs: %w", err)
	}
	return n, nil
}

// SweepCritiqueJobs deletes completed and failed jobs older than the
// cutoff. Queued and processing jobs are never swept.
func (s *Store) SweepCritiqueJobs(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM critique_jobs WHERE status IN (?, ?) AND updated_at < ?`,
		JobCompleted, JobFailed, before.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep critique jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("swept %d finished critique jobs", n)
	}
	return n, nil
}
