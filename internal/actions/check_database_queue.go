package actions

import (
	"context"
)

func init() {
	Register("check_database_queue", newCheckDatabaseQueueAction)
}

// checkDatabaseQueueAction atomically claims the next pending job of a
// configured type/machine and stores it at context.current_job (spec
// §4.8 check_database_queue).
type checkDatabaseQueueAction struct {
	config map[string]interface{}
}

func newCheckDatabaseQueueAction(config map[string]interface{}) (Action, error) {
	return &checkDatabaseQueueAction{config: config}, nil
}

func (a *checkDatabaseQueueAction) Execute(ctx context.Context, ectx Context) (string, error) {
	jobType := stringField(a.config, "job_type")
	machine := machineTypeField(a.config)

	job, err := db.Jobs.GetNext(jobType, machine)
	if err != nil {
		setLastError(ectx, "check_database_queue", err.Error())
		return errorEvent(a.config, "error"), nil
	}
	if job == nil {
		return stringOr(a.config, "empty", "no_jobs"), nil
	}

	ectx.Set("current_job", jobToContextMap(job))
	return stringOr(a.config, "success", "new_job"), nil
}

// machineTypeField returns a *string for the "machine_type" config key,
// nil when absent — nil means "any machine may claim" (spec P3).
func machineTypeField(config map[string]interface{}) *string {
	v := stringField(config, "machine_type")
	return stringPtr(v)
}
