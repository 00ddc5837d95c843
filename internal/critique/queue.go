package critique

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/pipeline"
	"selene/internal/store"
)

// =============================================================================
// CRITIQUE QUEUE
// =============================================================================

// Queue is the durable asynchronous review queue. It is an injected
// service with an explicit Start/Shutdown lifecycle; Shutdown drains
// in-flight jobs.
type Queue struct {
	store      *store.Store
	supervisor *pipeline.Supervisor
	registry   *identity.Registry
	notifier   Notifier
	cfg        config.CritiqueConfig

	sem  *semaphore.Weighted
	wake chan struct{}

	mu       sync.Mutex
	enqueued map[string]bool // guards concurrent submissions of a turn until the durable insert lands
	admitted []time.Time     // rolling jobs-per-minute admission window

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewQueue creates a Queue. notifier may be nil; LogNotifier is used.
func NewQueue(st *store.Store, supervisor *pipeline.Supervisor, registry *identity.Registry, notifier Notifier, cfg config.CritiqueConfig) *Queue {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Queue{
		store:      st,
		supervisor: supervisor,
		registry:   registry,
		notifier:   notifier,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.WorkerCount)),
		wake:       make(chan struct{}, 1),
		enqueued:   make(map[string]bool),
	}
}

// Start launches the dispatcher and the retention sweeper.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return fmt.Errorf("critique queue already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true

	// Recover attempts stranded in processing by a previous crash.
	if n, err := q.store.RequeueProcessingCritiqueJobs(); err != nil {
		logging.Critique("failed to requeue stranded critique jobs: %v", err)
	} else if n > 0 {
		logging.Critique("requeued %d stranded critique job(s)", n)
	}

	q.wg.Add(2)
	go q.dispatch(runCtx)
	go q.sweepLoop(runCtx)

	logging.Critique("critique queue started: %d workers, %d jobs/min", q.cfg.WorkerCount, q.cfg.JobsPerMinute)
	return nil
}

// Shutdown stops intake and waits for in-flight jobs to drain, bounded
// by ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Critique("critique queue drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("critique queue shutdown timed out: %w", ctx.Err())
	}
}

// Enqueue submits a delivered turn for review. Idempotent by turn id:
// duplicate submissions never produce duplicate executions. Never blocks
// or fails the caller's turn.
func (q *Queue) Enqueue(st *pipeline.State) {
	q.mu.Lock()
	if q.enqueued[st.TurnID] {
		q.mu.Unlock()
		return
	}
	q.enqueued[st.TurnID] = true
	q.mu.Unlock()
	// The INSERT OR IGNORE below is the durable dedupe; the map only
	// covers the window until it lands, so the entry is evicted again.
	defer func() {
		q.mu.Lock()
		delete(q.enqueued, st.TurnID)
		q.mu.Unlock()
	}()

	payload := JobPayload{
		SessionID:       st.SessionID,
		TurnID:          st.TurnID,
		UserID:          st.UserID,
		UserInput:       st.UserInput,
		Draft:           st.FinalOutput,
		Plan:            st.Plan,
		Mode:            st.Mode,
		IdentityID:      st.Identity.ID,
		IdentityVersion: st.Identity.Version,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Critique("failed to encode critique payload for turn %s: %v", st.TurnID, err)
		return
	}

	inserted, err := q.store.EnqueueCritiqueJob(st.TurnID, st.SessionID, st.UserID, string(data))
	if err != nil {
		logging.Critique("failed to enqueue critique for turn %s: %v", st.TurnID, err)
		return
	}
	if inserted {
		logging.CritiqueDebug("enqueued critique for turn %s", st.TurnID)
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// ----------------------------------------------------------------------------
// Dispatch
// ----------------------------------------------------------------------------

func (q *Queue) dispatch(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !q.admit() {
			if !q.waitSignal(ctx, ticker) {
				return
			}
			continue
		}

		job, err := q.store.ClaimCritiqueJob()
		if err != nil {
			logging.Critique("failed to claim critique job: %v", err)
		}
		if job == nil {
			if !q.waitSignal(ctx, ticker) {
				return
			}
			continue
		}

		if err := q.sem.Acquire(ctx, 1); err != nil {
			// Claimed but never worked: hand the job back for the next start.
			if rerr := q.store.ReleaseCritiqueJob(job.TurnID); rerr != nil {
				logging.Critique("failed to release claimed job %s: %v", job.TurnID, rerr)
			}
			return
		}
		q.recordAdmission()

		q.wg.Add(1)
		go func(job *store.CritiqueJob) {
			defer q.wg.Done()
			defer q.sem.Release(1)
			q.run(ctx, job)
		}(job)
	}
}

func (q *Queue) waitSignal(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-q.wake:
	case <-ticker.C:
	}
	return true
}

func (q *Queue) run(ctx context.Context, job *store.CritiqueJob) {
	err := q.process(ctx, job.TurnID, job.Payload, job.UserID)
	if err == nil {
		return
	}
	logging.Critique("critique job %s attempt %d failed: %v", job.TurnID, job.Attempts, err)

	// Backoff before the job becomes claimable again.
	backoff := q.cfg.GetRetryBackoff() * time.Duration(job.Attempts)
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
	}
	if ferr := q.store.FailCritiqueJob(job.TurnID, err.Error(), q.cfg.MaxRetries); ferr != nil {
		logging.Critique("failed to record job failure for %s: %v", job.TurnID, ferr)
	}
}

// ----------------------------------------------------------------------------
// Admission limiter
// ----------------------------------------------------------------------------

// admit reports whether a job may start under the jobs-per-minute cap.
func (q *Queue) admit() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	kept := q.admitted[:0]
	for _, t := range q.admitted {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	q.admitted = kept
	return len(q.admitted) < q.cfg.JobsPerMinute
}

func (q *Queue) recordAdmission() {
	q.mu.Lock()
	q.admitted = append(q.admitted, time.Now())
	q.mu.Unlock()
}

// ----------------------------------------------------------------------------
// Retention sweep
// ----------------------------------------------------------------------------

func (q *Queue) sweepLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.GetSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-q.cfg.GetRetention())
			if _, err := q.store.SweepCritiqueJobs(cutoff); err != nil {
				logging.Critique("retention sweep failed: %v", err)
			}
		}
	}
}

var _ pipeline.CritiqueEnqueuer = (*Queue)(nil)
var _ pipeline.HintSource = (*Queue)(nil)
