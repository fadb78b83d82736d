package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statemachine-engine/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore(t)

	err := s.Jobs.Create("job-1", "render", nil, nil, 5, models.JSONBlob{"path": "a.png"}, nil)
	require.NoError(t, err)

	dup := s.Jobs.Create("job-1", "render", nil, nil, 5, nil, nil)
	assert.Error(t, dup)
	var dke *DuplicateKeyError
	assert.ErrorAs(t, dup, &dke)

	job, err := s.Jobs.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobPending, job.Status)

	next, err := s.Jobs.GetNext("render", nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "job-1", next.ID)
	assert.Equal(t, models.JobProcessing, next.Status)

	again, err := s.Jobs.GetNext("render", nil)
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, s.Jobs.Complete("job-1", models.JSONBlob{"ok": true}))
	done, err := s.Jobs.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)
}

// P3: machine == nil matches any machine_type, including rows with a
// non-null machine_type.
func TestGetNextMachineFilter(t *testing.T) {
	s := newTestStore(t)

	gpu := "gpu-1"
	require.NoError(t, s.Jobs.Create("job-gpu", "render", &gpu, nil, 0, nil, nil))

	job, err := s.Jobs.GetNext("render", nil)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-gpu", job.ID)
}

func TestClaimIsCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Jobs.Create("job-2", "render", nil, nil, 0, nil, nil))

	first, err := s.Jobs.Claim("job-2")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.Jobs.Claim("job-2")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMachineEventsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.MachineEvents.Send("worker-1", "job_assigned", nil, nil, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	pending, err := s.MachineEvents.Pending("worker-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MachineEvents.MarkProcessed(pending[0].ID))

	remaining, err := s.MachineEvents.Pending("worker-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMachineStateUpsert(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.MachineStates.Upsert("worker-1", "waiting", 123, nil))
	require.NoError(t, s.MachineStates.Upsert("worker-1", "processing", 123, nil))

	row, err := s.MachineStates.Get("worker-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "processing", row.CurrentState)
}

func TestRealtimeEventsLogNeverErrors(t *testing.T) {
	s := newTestStore(t)

	id, ok := s.RealtimeEvents.Log("worker-1", "state_change", map[string]interface{}{"to_state": "done"})
	assert.True(t, ok)
	assert.NotZero(t, id)

	events, err := s.RealtimeEvents.GetUnconsumed(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, s.RealtimeEvents.MarkConsumed([]int64{events[0].ID}))

	remaining, err := s.RealtimeEvents.GetUnconsumed(0, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

// R2/R3-adjacent: malformed JSON blobs degrade to an empty map instead of
// surfacing a Scan error.
func TestJSONBlobDegradesOnMalformed(t *testing.T) {
	var blob models.JSONBlob
	err := blob.Scan([]byte("{not-json"))
	require.NoError(t, err)
	assert.Empty(t, blob)
}
