package actions

import "context"

func init() {
	Register("get_pending_jobs", newGetPendingJobsAction)
}

// getPendingJobsAction is a non-mutating batch read for controllers that
// plan to claim jobs individually (spec §4.8 get_pending_jobs).
type getPendingJobsAction struct {
	config map[string]interface{}
}

func newGetPendingJobsAction(config map[string]interface{}) (Action, error) {
	return &getPendingJobsAction{config: config}, nil
}

func (a *getPendingJobsAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobType := stringField(a.config, "job_type")
	machine := machineTypeField(a.config)
	limit := intField(a.config, "limit", 0)
	storeAs := stringOr(a.config, "store_as", "pending_jobs")

	jobs, err := db.Jobs.GetPending(jobType, machine, limit)
	if err != nil {
		ectx.Set(storeAs, []interface{}{})
		setLastError(ectx, "get_pending_jobs", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	if len(jobs) == 0 {
		ectx.Set(storeAs, []interface{}{})
		return stringOr(a.config, "empty", "no_jobs"), nil
	}

	list := make([]interface{}, len(jobs))
	for i := range jobs {
		list[i] = jobToContextMap(&jobs[i])
	}
	ectx.Set(storeAs, list)
	return stringOr(a.config, "success", "jobs_found"), nil
}
