// Package models defines the persistent row types of the statemachine
// engine's store: jobs, inter-machine events, realtime telemetry events,
// per-machine state snapshots, and pipeline step results.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// JSONBlob is a GORM-compatible JSON column that never fails to load.
// Malformed JSON already stored in a row degrades to an empty map plus a
// warning log instead of surfacing a scan error to the caller.
type JSONBlob map[string]interface{}

// Scan implements sql.Scanner.
func (b *JSONBlob) Scan(value interface{}) error {
	if value == nil {
		*b = JSONBlob{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*b = JSONBlob{}
		return nil
	}

	if len(raw) == 0 {
		*b = JSONBlob{}
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		zap.L().Warn("malformed JSON blob column, degrading to empty map", zap.Error(err))
		*b = JSONBlob{}
		return nil
	}
	*b = m
	return nil
}

// Value implements driver.Valuer.
func (b JSONBlob) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]interface{}(b))
	if err != nil {
		return "{}", nil
	}
	return string(raw), nil
}

// JobStatus enumerates the lifecycle of a Job row.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is a unit of work claimed by at most one worker at a time.
type Job struct {
	ID           string `gorm:"column:job_id;primaryKey"`
	JobType      string `gorm:"column:job_type;index"`
	MachineType  *string
	SourceJobID  *string `gorm:"column:source_job_id"`
	Priority     int     `gorm:"default:5"`
	Status       JobStatus `gorm:"index"`
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	Data         JSONBlob `gorm:"type:text"`
	Result       JSONBlob `gorm:"type:text"`
	Metadata     JSONBlob `gorm:"type:text"`
}

func (Job) TableName() string { return "jobs" }

// MachineEventStatus enumerates peer-event delivery state.
type MachineEventStatus string

const (
	EventPending   MachineEventStatus = "pending"
	EventProcessed MachineEventStatus = "processed"
)

// MachineEvent is an addressed peer-to-peer message with durable fallback.
type MachineEvent struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	SourceMachine  *string
	TargetMachine  string `gorm:"index"`
	EventType      string
	JobID          *string
	Payload        *string
	Status         MachineEventStatus `gorm:"index"`
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

func (MachineEvent) TableName() string { return "machine_events" }

// RealtimeEvent is a broadcast telemetry record, consumed and garbage
// collected independently of delivery over the telemetry socket.
type RealtimeEvent struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	MachineName string `gorm:"index"`
	EventType   string
	Payload     JSONBlob `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
	Consumed    bool `gorm:"index"`
	ConsumedAt  *time.Time
}

func (RealtimeEvent) TableName() string { return "realtime_events" }

// MachineState is the latest known state of one running engine process.
type MachineState struct {
	MachineName  string `gorm:"primaryKey"`
	CurrentState string
	LastActivity time.Time
	PID          int
	Metadata     JSONBlob `gorm:"type:text"`
}

func (MachineState) TableName() string { return "machine_state" }

// PipelineResult is an append-only log of per-machine state transitions,
// read by the check_machine_state built-in action.
type PipelineResult struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	JobID       *string
	StepName    string
	StepNumber  int
	Metadata    JSONBlob `gorm:"type:text"`
	CompletedAt time.Time `gorm:"index"`
}

func (PipelineResult) TableName() string { return "pipeline_results" }
