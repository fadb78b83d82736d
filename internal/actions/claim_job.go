package actions

import "context"

func init() {
	Register("claim_job", newClaimJobAction)
}

// claimJobAction does an atomic compare-and-swap on a job id already
// known to the machine (e.g. surfaced by get_pending_jobs), guarding
// against two controllers racing the same row (spec §4.8 claim_job, P3).
type claimJobAction struct {
	config map[string]interface{}
}

func newClaimJobAction(config map[string]interface{}) (Action, error) {
	return &claimJobAction{config: config}, nil
}

func (a *claimJobAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobID := stringField(a.config, "job_id")
	if jobID == "" {
		return errorEvent(a.config, "error"), errMissingField("job_id")
	}

	claimed, err := db.Jobs.Claim(jobID)
	if err != nil {
		setLastError(ectx, "claim_job", err.Error())
		return errorEvent(a.config, "error"), nil
	}
	if !claimed {
		return stringOr(a.config, "already_claimed", "already_claimed"), nil
	}

	job, err := db.Jobs.Get(jobID)
	if err != nil || job == nil {
		if err != nil {
			setLastError(ectx, "claim_job", err.Error())
		}
		return errorEvent(a.config, "error"), nil
	}
	ectx.Set("current_job", jobToContextMap(job))
	return successEvent(a.config, "claimed"), nil
}
