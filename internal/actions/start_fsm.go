package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
)

func init() {
	Register("start_fsm", newStartFSMAction)
}

// startFSMAction spawns a detached worker process running its own FSM
// config against a new machine name (spec §4.8 start_fsm). The child is
// given its own session via Setsid so it outlives the parent's process
// group and is never torn down when the spawning FSM exits — batch
// fan-out relies on this (scenario "batch spawn and wait").
type startFSMAction struct {
	config map[string]interface{}
}

func newStartFSMAction(config map[string]interface{}) (Action, error) {
	return &startFSMAction{config: config}, nil
}

func (a *startFSMAction) Execute(ctx context.Context, ectx Context) (string, error) {
	fsmConfig := stringField(a.config, "config")
	if fsmConfig == "" {
		return errorEvent(a.config, "error"), errMissingField("config")
	}

	machineName := stringField(a.config, "machine_name")
	if machineName == "" {
		return errorEvent(a.config, "error"), errMissingField("machine_name")
	}

	binary := stringOr(a.config, "binary", os.Args[0])
	args := []string{
		fsmConfig,
		"--machine-name", machineName,
	}

	if initial, ok := a.config["initial_context"].(map[string]interface{}); ok && len(initial) > 0 {
		blob, err := json.Marshal(initial)
		if err != nil {
			setLastError(ectx, "start_fsm", "initial_context not JSON-serializable: "+err.Error())
			return errorEvent(a.config, "error"), nil
		}
		if len(blob) > 4096 {
			zap.L().Warn("start_fsm initial_context exceeds 4KiB, child will receive it via the command line anyway",
				zap.Int("bytes", len(blob)), zap.String("machine_name", machineName))
		}
		args = append(args, "--initial-context", string(blob))
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		setLastError(ectx, "start_fsm", fmt.Sprintf("spawn failed: %v", err))
		return errorEvent(a.config, "error"), nil
	}

	go func(pid int) {
		if err := cmd.Wait(); err != nil {
			zap.L().Debug("spawned fsm exited", zap.Int("pid", pid), zap.Error(err))
		}
	}(cmd.Process.Pid)

	ectx.Set(stringOr(a.config, "store_as", "spawned_pid"), cmd.Process.Pid)
	return successEvent(a.config, "fsm_started"), nil
}
