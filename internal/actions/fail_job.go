package actions

import "context"

func init() {
	Register("fail_job", newFailJobAction)
}

// failJobAction marks current_job (or a configured job_id) failed with a
// message and clears current_job on success (spec §4.8 fail_job).
type failJobAction struct {
	config map[string]interface{}
}

func newFailJobAction(config map[string]interface{}) (Action, error) {
	return &failJobAction{config: config}, nil
}

func (a *failJobAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobID := stringField(a.config, "job_id")
	if jobID == "" {
		jobID = currentJobID(ectx)
	}
	if jobID == "" {
		return errorEvent(a.config, "error"), errMissingField("job_id")
	}

	message := stringField(a.config, "message")
	if message == "" {
		if v, ok := ectx.Get("last_error"); ok {
			if s, ok := v.(string); ok {
				message = s
			}
		}
	}

	if err := db.Jobs.Fail(jobID, message); err != nil {
		setLastError(ectx, "fail_job", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	clearCurrentJob(ectx)
	return successEvent(a.config, "success"), nil
}
