package actions

import (
	"context"

	"statemachine-engine/pkg/models"
)

func init() {
	Register("complete_job", newCompleteJobAction)
}

// completeJobAction marks current_job (or a configured job_id) completed
// and clears current_job on success (spec §4.8 complete_job).
type completeJobAction struct {
	config map[string]interface{}
}

func newCompleteJobAction(config map[string]interface{}) (Action, error) {
	return &completeJobAction{config: config}, nil
}

func (a *completeJobAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobID := stringField(a.config, "job_id")
	if jobID == "" {
		jobID = currentJobID(ectx)
	}
	if jobID == "" {
		return errorEvent(a.config, "error"), errMissingField("job_id")
	}

	var result models.JSONBlob
	if m, ok := a.config["result"].(map[string]interface{}); ok {
		result = models.JSONBlob(m)
	}

	if err := db.Jobs.Complete(jobID, result); err != nil {
		setLastError(ectx, "complete_job", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	clearCurrentJob(ectx)
	return successEvent(a.config, "success"), nil
}
