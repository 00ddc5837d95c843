package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendEventSequencesPerSession(t *testing.T) {
	st := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := st.AppendEvent("s1", "t1", "user_message", `{"text":"x"}`)
		require.NoError(t, err)
	}
	rec, err := st.AppendEvent("s2", "t1", "user_message", `{"text":"y"}`)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Sequence, "sequences are per session")

	events, err := st.LoadEvents("s1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		require.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestLoadRecentEventsOldestFirst(t *testing.T) {
	st := newTestStore(t)
	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := st.AppendEvent("s1", "t", "user_message", `{"text":"`+text+`"}`)
		require.NoError(t, err)
	}

	events, err := st.LoadRecentEvents("s1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(3), events[0].Sequence)
	require.Equal(t, int64(4), events[1].Sequence)
}

func TestUserHintWeightMonotonicAndCapped(t *testing.T) {
	st := newTestStore(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, st.UpsertUserHint("u1", "brevity", "keep it short", 0.25, 2.0))
	}

	hints, err := st.ListUserHints("u1")
	require.NoError(t, err)
	require.Len(t, hints, 1, "one type per user is a singleton")
	require.Equal(t, 10, hints[0].OccurrenceCount)
	require.Equal(t, 2.0, hints[0].Weight, "weight capped at max")
}

func TestUserHintsOrderedByWeight(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.UpsertUserHint("u1", "tone", "be natural", 0.25, 2.0))
	for i := 0; i < 3; i++ {
		require.NoError(t, st.UpsertUserHint("u1", "brevity", "keep it short", 0.25, 2.0))
	}

	hints, err := st.ListUserHints("u1")
	require.NoError(t, err)
	require.Len(t, hints, 2)
	require.Equal(t, "brevity", hints[0].Type)
}

func TestSessionHintInsertOrIgnore(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.UpsertSessionHint("s1", "formatting", "plain text"))
	require.NoError(t, st.UpsertSessionHint("s1", "formatting", "plain text"))

	hints, err := st.ListSessionHints("s1")
	require.NoError(t, err)
	require.Len(t, hints, 1)
	require.Equal(t, 1, hints[0].OccurrenceCount)
}

func TestCritiqueJobLifecycle(t *testing.T) {
	st := newTestStore(t)

	inserted, err := st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)
	require.True(t, inserted)

	// Duplicate enqueue is a no-op.
	inserted, err = st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)
	require.False(t, inserted)

	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "turn-1", job.TurnID)
	require.Equal(t, 1, job.Attempts)

	// Nothing else is queued.
	job2, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.Nil(t, job2)

	require.NoError(t, st.CompleteCritiqueJob("turn-1", `{"approved":true}`, 42))
	got, err := st.GetCritiqueJob("turn-1")
	require.NoError(t, err)
	require.Equal(t, JobCompleted, got.Status)
	require.Equal(t, int64(42), got.ProcessingMs)
}

func TestCritiqueJobRetryThenFail(t *testing.T) {
	st := newTestStore(t)
	_, err := st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)

	maxRetries := 2
	for i := 0; i < maxRetries; i++ {
		job, err := st.ClaimCritiqueJob()
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", i+1)
		require.NoError(t, st.FailCritiqueJob(job.TurnID, "boom", maxRetries))
	}

	// Attempts exhausted: job is failed, not requeued.
	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.Nil(t, job)

	got, err := st.GetCritiqueJob("turn-1")
	require.NoError(t, err)
	require.Equal(t, JobFailed, got.Status)
	require.Equal(t, "boom", got.Error)
}

func TestReleaseCritiqueJobRefundsAttempt(t *testing.T) {
	st := newTestStore(t)
	_, err := st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)

	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.Equal(t, 1, job.Attempts)

	require.NoError(t, st.ReleaseCritiqueJob("turn-1"))

	// The claim did not count: the next claim is attempt 1 again.
	job, err = st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, 1, job.Attempts)
}

func TestRequeueProcessingCritiqueJobs(t *testing.T) {
	st := newTestStore(t)
	_, err := st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)
	_, err = st.EnqueueCritiqueJob("turn-2", "s1", "u1", `{}`)
	require.NoError(t, err)

	// Two claimed jobs simulate a crash mid-process.
	for i := 0; i < 2; i++ {
		job, err := st.ClaimCritiqueJob()
		require.NoError(t, err)
		require.NotNil(t, job)
	}
	n, err := st.CountCritiqueJobs(JobProcessing)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	moved, err := st.RequeueProcessingCritiqueJobs()
	require.NoError(t, err)
	require.Equal(t, int64(2), moved)

	// Both jobs are claimable again, with the crashed attempt still counted.
	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, 2, job.Attempts)
}

func TestSweepKeepsUnfinishedJobs(t *testing.T) {
	st := newTestStore(t)
	_, err := st.EnqueueCritiqueJob("turn-1", "s1", "u1", `{}`)
	require.NoError(t, err)
	_, err = st.EnqueueCritiqueJob("turn-2", "s1", "u1", `{}`)
	require.NoError(t, err)

	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NoError(t, st.CompleteCritiqueJob(job.TurnID, `{}`, 1))

	n, err := st.SweepCritiqueJobs(time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	queued, err := st.CountCritiqueJobs(JobQueued)
	require.NoError(t, err)
	require.Equal(t, 1, queued, "queued jobs are never swept")
}

func TestPendingCorrectionsConsumedOnce(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddPendingCorrection("s1", "t1", "moderate", `["too long"]`, "shorten it", "original"))

	first, err := st.TakePendingCorrections("s1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "shorten it", first[0].FixInstructions)

	second, err := st.TakePendingCorrections("s1")
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestFacts(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddFact("u1", "allergic to peanuts", "health"))
	require.NoError(t, st.AddFact("u1", "works night shifts", ""))

	facts, err := st.ListFacts("u1")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Equal(t, "allergic to peanuts", facts[0].Content)
}
