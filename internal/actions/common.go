package actions

import (
	"fmt"

	"statemachine-engine/pkg/models"
)

// successEvent returns the configured override for "success", or def.
func successEvent(config map[string]interface{}, def string) string {
	return stringOr(config, "success", def)
}

// errorEvent returns the configured override for "error", or def.
func errorEvent(config map[string]interface{}, def string) string {
	return stringOr(config, "error", def)
}

func stringOr(config map[string]interface{}, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}

func stringField(config map[string]interface{}, key string) string {
	s, _ := config[key].(string)
	return s
}

func intField(config map[string]interface{}, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func setLastError(ectx Context, actionType, message string) {
	ectx.Set("last_error", message)
	ectx.Set("last_error_action", actionType)
}

func clearCurrentJob(ectx Context) {
	ectx.Delete("current_job")
}

var errMissingField = func(field string) error {
	return fmt.Errorf("missing required config field %q", field)
}

func floatField(config map[string]interface{}, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func boolField(config map[string]interface{}, key string, def bool) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return def
}

func stringListField(config map[string]interface{}, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// currentJobMap returns the current_job map from context, if present and
// well-formed.
func currentJobMap(ectx Context) (map[string]interface{}, bool) {
	raw, ok := ectx.Get("current_job")
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]interface{})
	return m, ok
}

// jobToContextMap renders a store Job row as the current_job map the
// engine expects: {id, source_job_id, job_type, data} (spec §4.8
// check_database_queue).
func jobToContextMap(job *models.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":       job.ID,
		"job_type": job.JobType,
		"data":     map[string]interface{}(job.Data),
	}
	if job.SourceJobID != nil {
		m["source_job_id"] = *job.SourceJobID
	}
	return m
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
