package actions

import (
	"context"
	"time"

	"statemachine-engine/pkg/models"
)

func init() {
	Register("wait_for_jobs", newWaitForJobsAction)
}

// waitForJobsAction polls a list of job ids accumulated via add_to_list
// (default key "tracked_jobs") and reports once every job has reached a
// terminal status, or once a configured timeout elapses (spec §4.8
// wait_for_jobs). Returning "" leaves the FSM in its current state for
// another poll on the next cycle — the engine treats an empty event as
// "no transition, keep going" (spec §4.7 step 4).
type waitForJobsAction struct {
	config       map[string]interface{}
	waitStartKey string
}

func newWaitForJobsAction(config map[string]interface{}) (Action, error) {
	return &waitForJobsAction{config: config, waitStartKey: "_wait_for_jobs_started_at"}, nil
}

func (a *waitForJobsAction) Execute(ctx context.Context, ectx Context) (string, error) {
	key := stringOr(a.config, "tracked_jobs_key", "tracked_jobs")
	raw, ok := ectx.Get(key)
	if !ok {
		return stringOr(a.config, "no_jobs_tracked", "no_jobs_tracked"), nil
	}
	ids := toStringList(raw)
	if len(ids) == 0 {
		return stringOr(a.config, "no_jobs_tracked", "no_jobs_tracked"), nil
	}

	startedAt, ok := ectx.Get(a.waitStartKey)
	var startTime time.Time
	if ok {
		if s, ok := startedAt.(string); ok {
			startTime, _ = time.Parse(time.RFC3339Nano, s)
		}
	}
	if startTime.IsZero() {
		startTime = timeNow()
		ectx.Set(a.waitStartKey, startTime.Format(time.RFC3339Nano))
	}

	var completed, failed, pending []string
	for _, id := range ids {
		job, err := db.Jobs.Get(id)
		if err != nil || job == nil {
			pending = append(pending, id)
			continue
		}
		switch job.Status {
		case models.JobCompleted:
			completed = append(completed, id)
		case models.JobFailed:
			failed = append(failed, id)
		default:
			pending = append(pending, id)
		}
	}

	ectx.Set(stringOr(a.config, "completed_key", "completed_jobs"), toInterfaceList(completed))
	ectx.Set(stringOr(a.config, "failed_key", "failed_jobs"), toInterfaceList(failed))

	if len(pending) == 0 {
		ectx.Delete(a.waitStartKey)
		return stringOr(a.config, "success", "all_jobs_complete"), nil
	}

	timeoutSeconds := floatField(a.config, "timeout", 0)
	if timeoutSeconds > 0 && timeNow().Sub(startTime) > time.Duration(timeoutSeconds*float64(time.Second)) {
		ectx.Delete(a.waitStartKey)
		return stringOr(a.config, "timeout_event", "wait_timeout"), nil
	}

	return "", nil
}

func toStringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toInterfaceList(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func timeNow() time.Time {
	return time.Now().UTC()
}
