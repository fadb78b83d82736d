package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"statemachine-engine/pkg/models"
)

// PipelineResultRepository implements the append-only per-machine
// transition log read by the check_machine_state built-in action.
type PipelineResultRepository struct {
	db *gorm.DB
}

// Append records one state transition for a machine. jobID is nil for
// machine transitions not tied to a specific job.
func (r *PipelineResultRepository) Append(jobID *string, machine, state, event string) error {
	row := models.PipelineResult{
		JobID:      jobID,
		StepName:   state,
		StepNumber: 0,
		Metadata: models.JSONBlob{
			"machine": machine,
			"state":   state,
			"event":   event,
		},
		CompletedAt: time.Now().UTC(),
	}
	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append pipeline result: %w", err)
	}
	return nil
}

// Latest returns the most recent transition record for machine, or nil
// if none exists. The schema carries the machine name inside the
// metadata blob (spec §3), so this scans recent rows newest-first rather
// than relying on a driver-specific JSON-path operator.
func (r *PipelineResultRepository) Latest(machine string) (*models.PipelineResult, error) {
	const scanWindow = 200

	var rows []models.PipelineResult
	err := r.db.Order("completed_at DESC, id DESC").Limit(scanWindow).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query latest pipeline result: %w", err)
	}
	for i := range rows {
		if name, ok := rows[i].Metadata["machine"].(string); ok && name == machine {
			return &rows[i], nil
		}
	}
	return nil, nil
}
