package critique

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/pipeline"
	"selene/internal/provider"
	"selene/internal/store"
)

type mockClient struct {
	mu       sync.Mutex
	response string
	err      error
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.response, m.err
}

func (m *mockClient) CompleteWithOptions(ctx context.Context, req provider.Request) (*provider.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &provider.Result{Content: m.response}, nil
}

func testDoc(version int) *identity.Document {
	return &identity.Document{
		ID:      "selene",
		Version: version,
		Traits:  []string{"warm"},
		Rubric:  []string{"Addresses the user's message."},
	}
}

func newTestQueue(t *testing.T, judge string) (*Queue, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := identity.NewRegistry()
	registry.Register(testDoc(1))
	registry.Register(testDoc(2))

	cfg := config.DefaultCritiqueConfig()
	supervisor := pipeline.NewSupervisor(&mockClient{response: judge}, "judge", config.DefaultPipelineConfig())
	return NewQueue(st, supervisor, registry, nil, cfg), st
}

func deliveredState() *pipeline.State {
	return &pipeline.State{
		SessionID:   "s1",
		TurnID:      "turn-1",
		UserID:      "u1",
		UserInput:   "hey",
		Mode:        identity.ModeCompanion,
		Identity:    identity.Ref{ID: "selene", Version: 1},
		Plan:        []string{"say hi"},
		FinalOutput: "hey! good to see you",
	}
}

func TestEnqueueIdempotent(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)

	q.Enqueue(deliveredState())
	q.Enqueue(deliveredState())

	n, err := st.CountCritiqueJobs(store.JobQueued)
	require.NoError(t, err)
	require.Equal(t, 1, n, "duplicate submission must not produce duplicate jobs")
}

func TestEnqueueGuardEvictedAfterInsert(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)

	q.Enqueue(deliveredState())
	q.mu.Lock()
	guarded := len(q.enqueued)
	q.mu.Unlock()
	require.Zero(t, guarded, "guard map must not retain entries past the durable insert")

	// The durable dedupe alone still prevents a duplicate row.
	q.Enqueue(deliveredState())
	n, err := st.CountCritiqueJobs(store.JobQueued)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStrandedJobRecoveredOnRestart(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := identity.NewRegistry()
	registry.Register(testDoc(1))
	cfg := config.DefaultCritiqueConfig()
	supervisor := pipeline.NewSupervisor(&mockClient{response: `{"approved": true, "issues": []}`}, "judge", config.DefaultPipelineConfig())

	// First process enqueues, claims, then dies before finishing.
	first := NewQueue(st, supervisor, registry, nil, cfg)
	first.Enqueue(deliveredState())
	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NotNil(t, job)

	// A fresh queue over the same store must requeue and finish the job.
	second := NewQueue(st, supervisor, registry, nil, cfg)
	require.NoError(t, second.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, second.Shutdown(ctx))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := st.CountCritiqueJobs(store.JobCompleted)
		require.NoError(t, err)
		if n == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("processing job from a previous run was never recovered")
}

func TestProcessRejectionWritesHintsAndCorrection(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": false, "issues": ["response is too long", "tone is robotic", "markdown is not allowed here"], "fix_instructions": "shorten and relax"}`)

	q.Enqueue(deliveredState())
	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.process(context.Background(), job.TurnID, job.Payload, job.UserID))

	got, err := st.GetCritiqueJob("turn-1")
	require.NoError(t, err)
	require.Equal(t, store.JobCompleted, got.Status)

	var result JobResult
	require.NoError(t, json.Unmarshal([]byte(got.Result), &result))
	require.False(t, result.Approved)
	require.Equal(t, SeveritySerious, result.Severity)
	require.ElementsMatch(t, []string{"brevity", "tone", "formatting"}, result.HintsGenerated)

	userHints, err := st.ListUserHints("u1")
	require.NoError(t, err)
	require.Len(t, userHints, 3)

	sessionHints, err := st.ListSessionHints("s1")
	require.NoError(t, err)
	require.Len(t, sessionHints, 3)

	corrections, err := st.TakePendingCorrections("s1")
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	require.Equal(t, "shorten and relax", corrections[0].FixInstructions)
}

func TestProcessApprovalWritesNoCorrection(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)

	q.Enqueue(deliveredState())
	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	require.NoError(t, q.process(context.Background(), job.TurnID, job.Payload, job.UserID))

	var result JobResult
	got, err := st.GetCritiqueJob("turn-1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(got.Result), &result))
	require.True(t, result.Approved)
	require.Equal(t, SeverityMinor, result.Severity)

	corrections, err := st.TakePendingCorrections("s1")
	require.NoError(t, err)
	require.Empty(t, corrections)
}

func TestProcessRequiresPinnedIdentityVersion(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)

	delivered := deliveredState()
	delivered.Identity = identity.Ref{ID: "selene", Version: 9}
	q.Enqueue(delivered)

	job, err := st.ClaimCritiqueJob()
	require.NoError(t, err)
	err = q.process(context.Background(), job.TurnID, job.Payload, job.UserID)
	require.Error(t, err, "missing pinned version must fail the attempt, not fall back to latest")
	require.Contains(t, err.Error(), "pinned identity")
}

func TestSeverityBands(t *testing.T) {
	require.Equal(t, SeverityMinor, severityFor(0))
	require.Equal(t, SeverityModerate, severityFor(1))
	require.Equal(t, SeverityModerate, severityFor(2))
	require.Equal(t, SeveritySerious, severityFor(3))
	require.Equal(t, SeveritySerious, severityFor(7))
}

func TestTaxonomyFirstMatchWins(t *testing.T) {
	rule := classifyIssue("the response is TOO LONG and the tone is off")
	require.NotNil(t, rule)
	require.Equal(t, "brevity", rule.hintType, "earlier table entries win")

	require.Nil(t, classifyIssue("something entirely unmapped"))
}

func TestRenderHintsOrderedByWeight(t *testing.T) {
	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)

	require.NoError(t, st.UpsertUserHint("u1", "tone", "be natural", 0.25, 2.0))
	for i := 0; i < 3; i++ {
		require.NoError(t, st.UpsertUserHint("u1", "brevity", "keep it short", 0.25, 2.0))
	}

	rendered := q.RenderHints("u1")
	require.True(t, strings.Index(rendered, "keep it short") < strings.Index(rendered, "be natural"),
		"higher-weight hints render first:\n%s", rendered)
}

func TestStartShutdownDrains(t *testing.T) {
	// The sql.DB opener goroutine lives until the store closes in cleanup.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	q, st := newTestQueue(t, `{"approved": true, "issues": []}`)
	require.NoError(t, q.Start(context.Background()))

	q.Enqueue(deliveredState())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := st.CountCritiqueJobs(store.JobCompleted)
		require.NoError(t, err)
		if n == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	n, err := st.CountCritiqueJobs(store.JobCompleted)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
