package actions

import (
	"context"

	"statemachine-engine/pkg/models"
)

func init() {
	Register("check_job_status", newCheckJobStatusAction)
}

// checkJobStatusAction is a read-only job status lookup by ID, used by
// controller FSMs that poll without claiming. Supplemented from
// original_source/src/statemachine_engine/database/models/job.py's
// get_job — not in spec.md's minimum action set, but named in
// SPEC_FULL.md §4.8 to round out the controller-FSM story.
type checkJobStatusAction struct {
	config map[string]interface{}
}

func newCheckJobStatusAction(config map[string]interface{}) (Action, error) {
	return &checkJobStatusAction{config: config}, nil
}

func (a *checkJobStatusAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobID := stringField(a.config, "job_id")
	if jobID == "" {
		return errorEvent(a.config, "error"), errMissingField("job_id")
	}

	job, err := db.Jobs.Get(jobID)
	if err != nil {
		setLastError(ectx, "check_job_status", err.Error())
		return errorEvent(a.config, "error"), nil
	}
	if job == nil {
		return stringOr(a.config, "not_found", "not_found"), nil
	}

	ectx.Set(stringOr(a.config, "store_as", "job_status"), string(job.Status))

	switch job.Status {
	case models.JobCompleted:
		return stringOr(a.config, "completed", "completed"), nil
	case models.JobFailed:
		return stringOr(a.config, "failed", "failed"), nil
	default:
		return stringOr(a.config, "pending", "pending"), nil
	}
}
