package actions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"statemachine-engine/internal/interpolate"
)

func init() {
	Register("bash", newBashAction)
}

// bashAction runs a shell command with a timeout. Grounded on
// _examples/spencerandtheteagues-apex-build-platform/backend/internal/agents/autonomous/executor.go's
// exec.CommandContext + strings.Builder stdout/stderr capture, and on
// internal/execution/container_sandbox.go's graceful-stop-then-force-kill
// pattern for the timeout path.
type bashAction struct {
	config map[string]interface{}
}

func newBashAction(config map[string]interface{}) (Action, error) {
	return &bashAction{config: config}, nil
}

// fallbackExpr matches {primary|fallback}, the bash action's own
// first-present-wins expression (spec §4.8 "fallback expression"). The
// generic config interpolator (internal/interpolate) has already run over
// the whole action config by the time Execute sees it, but its placeholder
// grammar excludes `|`, so this form survives untouched for bash to
// resolve itself.
var fallbackExpr = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\|([A-Za-z_][A-Za-z0-9_.]*)\}`)

// resolveFallbacks replaces every {primary|fallback} expression in command
// with whichever of primary/fallback resolves first against snapshot,
// shell-quoting the resolved value when it contains `/` or whitespace and
// escaping any embedded single quotes for single-quote context (spec §4.8
// bash: "Values containing / or whitespace are shell-quoted; values
// embedded inside '...' are escaped for single-quote context").
func resolveFallbacks(command string, snapshot map[string]interface{}) string {
	return fallbackExpr.ReplaceAllStringFunc(command, func(match string) string {
		groups := fallbackExpr.FindStringSubmatch(match)
		primary, fallback := groups[1], groups[2]
		val, found := interpolate.Lookup(primary, snapshot)
		if !found {
			val, found = interpolate.Lookup(fallback, snapshot)
		}
		if !found {
			return match
		}
		return shellQuoteIfNeeded(fmt.Sprintf("%v", val))
	})
}

// shellQuoteIfNeeded wraps s in single quotes when it contains a slash or
// whitespace, escaping any single quote it contains for that context.
func shellQuoteIfNeeded(s string) string {
	if !strings.ContainsAny(s, "/ \t\n") {
		return s
	}
	escaped := strings.ReplaceAll(s, "'", `'\''`)
	return "'" + escaped + "'"
}

func (a *bashAction) Execute(ctx context.Context, ectx Context) (string, error) {
	command := stringField(a.config, "command")
	if command == "" {
		if job, ok := ectx.Get("current_job"); ok {
			if jm, ok := job.(map[string]interface{}); ok {
				if data, ok := jm["data"].(map[string]interface{}); ok {
					command = stringField(data, "command")
				}
			}
		}
	}
	command = resolveFallbacks(command, ectx.Snapshot())
	if command == "" {
		setLastError(ectx, "bash", "no command configured")
		clearCurrentJob(ectx)
		return errorEvent(a.config, "error"), nil
	}

	timeoutSeconds := intField(a.config, "timeout", 30)
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		setLastError(ectx, "bash", fmt.Sprintf("command timed out after %ds", timeoutSeconds))
		ectx.Set("last_error_command", command)
		clearCurrentJob(ectx)
		return errorEvent(a.config, "error"), nil
	}

	ectx.Set("stdout", stdout.String())
	ectx.Set("stderr", stderr.String())

	if err == nil {
		return successEvent(a.config, "job_done"), nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	if mappings, ok := a.config["error_mappings"].(map[string]interface{}); ok {
		if event, ok := mappings[strconv.Itoa(exitCode)].(string); ok {
			// Mapped failure: recoverable by FSM design, current_job stays.
			ectx.Set("last_error", fmt.Sprintf("command exited %d", exitCode))
			ectx.Set("last_error_action", "bash")
			ectx.Set("last_error_command", command)
			ectx.Set("last_error_exit_code", exitCode)
			return event, nil
		}
	}

	setLastError(ectx, "bash", fmt.Sprintf("command exited %d", exitCode))
	ectx.Set("last_error_command", command)
	ectx.Set("last_error_exit_code", exitCode)
	clearCurrentJob(ectx)
	return errorEvent(a.config, "error"), nil
}

// killProcessGroup sends SIGTERM to the command's process group and
// escalates to SIGKILL after a 5s grace window (spec §5 "5s for
// subprocess kill grace").
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		zap.L().Warn("SIGTERM to process group failed", zap.Error(err))
	}

	// cmd.Run has already reaped the group leader, so poll the group
	// itself: signal 0 fails once no member is left.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if syscall.Kill(-pgid, 0) != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	syscall.Kill(-pgid, syscall.SIGKILL)
}
