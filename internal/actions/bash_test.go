package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBash_SuccessCapturesStdout(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{"command": "echo hello"})
	require.NoError(t, err)

	ectx := newTestContext()
	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "job_done", event)

	stdout, _ := ectx.Get("stdout")
	assert.Contains(t, stdout, "hello")
}

// Mapped exit codes keep current_job around so the FSM can branch on a
// recoverable failure instead of losing job context (P9).
func TestBash_ErrorMappingKeepsCurrentJob(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{
		"command": "exit 3",
		"error_mappings": map[string]interface{}{
			"3": "retryable",
		},
	})
	require.NoError(t, err)

	ectx := newTestContext()
	ectx.Set("current_job", map[string]interface{}{"id": "job-1"})

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "retryable", event)

	_, ok := ectx.Get("current_job")
	assert.True(t, ok, "current_job should survive a mapped failure")
}

func TestBash_FallbackExpressionPrefersPrimary(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{"command": "echo {custom_command|default_command}"})
	require.NoError(t, err)

	ectx := newTestContext()
	ectx.Set("custom_command", "from-primary")
	ectx.Set("default_command", "from-fallback")

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "job_done", event)

	stdout, _ := ectx.Get("stdout")
	assert.Contains(t, stdout, "from-primary")
}

func TestBash_FallbackExpressionFallsBackWhenPrimaryMissing(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{"command": "echo {custom_command|default_command}"})
	require.NoError(t, err)

	ectx := newTestContext()
	ectx.Set("default_command", "from-fallback")

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "job_done", event)

	stdout, _ := ectx.Get("stdout")
	assert.Contains(t, stdout, "from-fallback")
}

func TestBash_FallbackExpressionQuotesValueWithSlash(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{"command": "echo {input_path|x}"})
	require.NoError(t, err)

	ectx := newTestContext()
	ectx.Set("input_path", "/tmp/some dir/file.txt")

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "job_done", event)

	stdout, _ := ectx.Get("stdout")
	assert.Contains(t, stdout, "/tmp/some dir/file.txt")
}

func TestBash_UnmappedErrorClearsCurrentJob(t *testing.T) {
	a, err := newBashAction(map[string]interface{}{"command": "exit 7"})
	require.NoError(t, err)

	ectx := newTestContext()
	ectx.Set("current_job", map[string]interface{}{"id": "job-1"})

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "error", event)

	_, ok := ectx.Get("current_job")
	assert.False(t, ok)
}
