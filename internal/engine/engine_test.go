package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statemachine-engine/internal/store"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()

	s, err := store.Open(&store.Config{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	prefix := fmt.Sprintf("enginetest-%d", time.Now().UnixNano())

	e, err := New(Options{
		Config:       cfg,
		MachineName:  "test-machine",
		SocketPrefix: prefix,
		Store:        s,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.control.Close() })
	return e
}

// P4: first-match-wins, no specific-over-wildcard preference — a
// wildcard rule earlier in the document order beats a more specific one
// listed later for the same event.
func TestResolveTransition_FirstMatchWins(t *testing.T) {
	cfg := &Config{
		InitialState: "waiting",
		Transitions: []TransitionConfig{
			{From: "*", Event: "error", To: "failed"},
			{From: "waiting", Event: "error", To: "retry"},
		},
	}
	e := newTestEngine(t, cfg)

	to, ok := e.resolveTransition("waiting", "error")
	require.True(t, ok)
	assert.Equal(t, "failed", to)
}

func TestResolveTransition_NoMatchIsLegal(t *testing.T) {
	cfg := &Config{InitialState: "waiting"}
	e := newTestEngine(t, cfg)

	_, ok := e.resolveTransition("waiting", "nonexistent_event")
	assert.False(t, ok)
}

func TestDispatch_MovesState(t *testing.T) {
	cfg := &Config{
		InitialState: "waiting",
		Transitions: []TransitionConfig{
			{From: "waiting", Event: "new_job", To: "processing"},
		},
	}
	e := newTestEngine(t, cfg)

	to := e.dispatch("new_job")
	assert.Equal(t, "processing", to)
	assert.Equal(t, "processing", e.CurrentState())
}

// P8: timers belonging to the state being left are cancelled before any
// action of the destination state runs.
func TestCancelTimers_StopsPendingFire(t *testing.T) {
	cfg := &Config{
		InitialState: "waiting",
		Transitions: []TransitionConfig{
			{From: "waiting", Event: "timeout(0.05)", To: "timed_out"},
			{From: "waiting", Event: "new_job", To: "processing"},
		},
	}
	e := newTestEngine(t, cfg)

	e.startTimers("waiting")
	e.dispatch("new_job") // leaves "waiting" before the 50ms timer fires

	select {
	case ev := <-e.timerEvents:
		t.Fatalf("timer fired after its owning state was left: %q", ev)
	case <-time.After(150 * time.Millisecond):
		// expected: cancelled, nothing delivered
	}
}

// Scenario: single-worker happy path — check_database_queue claims a
// job, set_context records a marker, complete_job closes it out.
func TestRunStateActions_SingleWorkerHappyPath(t *testing.T) {
	cfg := &Config{
		InitialState: "waiting",
		Transitions: []TransitionConfig{
			{From: "waiting", Event: "new_job", To: "processing"},
			{From: "waiting", Event: "no_jobs", To: "waiting"},
			{From: "processing", Event: "success", To: "done"},
		},
		Actions: map[string][]ActionConfig{
			"waiting": {
				{"type": "check_database_queue", "job_type": "render"},
			},
			"processing": {
				{"type": "set_context", "key": "marker", "value": "seen", "success": "context_set"},
				{"type": "complete_job"},
			},
		},
	}
	e := newTestEngine(t, cfg)

	require.NoError(t, e.store.Jobs.Create("job-1", "render", nil, nil, 0, nil, nil))

	e.runStateActions(context.Background())

	assert.Equal(t, "done", e.CurrentState())
	marker, _ := e.ctx.Get("marker")
	assert.Equal(t, "seen", marker)

	job, err := e.store.Jobs.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", string(job.Status))
}

// Context propagation (P5): current_job.data keys surface at the top
// level for the next action's templates to reference directly.
func TestRunStateActions_PropagatesJobContext(t *testing.T) {
	cfg := &Config{
		InitialState: "waiting",
		Transitions: []TransitionConfig{
			{From: "waiting", Event: "new_job", To: "processing"},
		},
		Actions: map[string][]ActionConfig{
			"waiting": {
				{"type": "check_database_queue", "job_type": "render"},
			},
			"processing": {
				{"type": "set_context", "key": "echo", "value": "{input_path}"},
			},
		},
	}
	e := newTestEngine(t, cfg)

	require.NoError(t, e.store.Jobs.Create("job-2", "render", nil, nil, 0,
		map[string]interface{}{"input_path": "/tmp/in.png"}, nil))

	e.runStateActions(context.Background())

	echo, _ := e.ctx.Get("echo")
	assert.Equal(t, "/tmp/in.png", echo)
}

// A no-op action list (no transition) leaves the engine parked in its
// current state without looping forever.
func TestRunStateActions_NoActionsIsNoop(t *testing.T) {
	cfg := &Config{InitialState: "waiting"}
	e := newTestEngine(t, cfg)

	e.runStateActions(context.Background())
	assert.Equal(t, "waiting", e.CurrentState())
}
