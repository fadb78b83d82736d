package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPendingJobs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Jobs.Create("job-1", "render", nil, nil, 0, nil, nil))
	require.NoError(t, s.Jobs.Create("job-2", "render", nil, nil, 0, nil, nil))

	a, err := newGetPendingJobsAction(map[string]interface{}{"job_type": "render"})
	require.NoError(t, err)

	ectx := newTestContext()
	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "jobs_found", event)

	list, ok := ectx.Get("pending_jobs")
	require.True(t, ok)
	jobs, ok := list.([]interface{})
	require.True(t, ok)
	assert.Len(t, jobs, 2)
}

func TestGetPendingJobs_EmptyReportsNoJobs(t *testing.T) {
	newTestStore(t)

	a, err := newGetPendingJobsAction(map[string]interface{}{"job_type": "render"})
	require.NoError(t, err)

	event, err := a.Execute(bg, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "no_jobs", event)
}
