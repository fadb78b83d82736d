// Package metrics provides Prometheus metrics for the statemachine engine.
// Exports event-dispatch, action-execution, transition, and store counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors the engine can exercise.
type Metrics struct {
	EventsDispatchedTotal  *prometheus.CounterVec
	ActionsExecutedTotal   *prometheus.CounterVec
	ActionErrorsTotal      *prometheus.CounterVec
	TransitionsTotal       *prometheus.CounterVec
	RealtimeEventsEmitted  *prometheus.CounterVec
	RealtimeEventsDropped  prometheus.Counter
	JobClaimAttemptsTotal  *prometheus.CounterVec
	JobClaimSuccessesTotal *prometheus.CounterVec
}

// Get returns the process-wide Metrics instance, registering collectors
// on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.EventsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "engine",
			Name:      "events_dispatched_total",
			Help:      "Total number of events dispatched through the transition table, by machine and event type",
		},
		[]string{"machine", "event_type"},
	)

	m.ActionsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "engine",
			Name:      "actions_executed_total",
			Help:      "Total number of actions executed, by action type",
		},
		[]string{"machine", "action_type"},
	)

	m.ActionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "engine",
			Name:      "action_errors_total",
			Help:      "Total number of action executions that ended in an error event, by action type",
		},
		[]string{"machine", "action_type"},
	)

	m.TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Total number of state transitions taken, by from and to state",
		},
		[]string{"machine", "from_state", "to_state"},
	)

	m.RealtimeEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "telemetry",
			Name:      "realtime_events_emitted_total",
			Help:      "Total number of realtime telemetry events emitted, by delivery path",
		},
		[]string{"path"},
	)

	m.RealtimeEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "telemetry",
			Name:      "realtime_events_dropped_total",
			Help:      "Total number of realtime telemetry events lost on both the socket and store fallback paths",
		},
	)

	m.JobClaimAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "store",
			Name:      "job_claim_attempts_total",
			Help:      "Total number of job claim attempts, by job type",
		},
		[]string{"job_type"},
	)

	m.JobClaimSuccessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statemachine",
			Subsystem: "store",
			Name:      "job_claim_successes_total",
			Help:      "Total number of successful job claims, by job type",
		},
		[]string{"job_type"},
	)

	return m
}
