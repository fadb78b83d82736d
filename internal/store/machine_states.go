package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"statemachine-engine/pkg/models"
)

// MachineStateRepository implements the MachineStates operations of spec
// §4.1: upserted by the engine on every state change and on startup.
type MachineStateRepository struct {
	db *gorm.DB
}

// Upsert writes the latest state snapshot for machine, creating the row
// on first use.
func (r *MachineStateRepository) Upsert(machine, state string, pid int, metadata models.JSONBlob) error {
	if metadata == nil {
		metadata = models.JSONBlob{}
	}
	row := models.MachineState{
		MachineName:  machine,
		CurrentState: state,
		LastActivity: time.Now().UTC(),
		PID:          pid,
		Metadata:     metadata,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_state", "last_activity", "p_id", "metadata"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert machine state: %w", err)
	}
	return nil
}

// All returns every known machine state row.
func (r *MachineStateRepository) All() ([]models.MachineState, error) {
	var rows []models.MachineState
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list machine states: %w", err)
	}
	return rows, nil
}

// Get returns the latest state snapshot for machine, or nil if unknown.
func (r *MachineStateRepository) Get(machine string) (*models.MachineState, error) {
	var row models.MachineState
	err := r.db.Where("machine_name = ?", machine).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine state: %w", err)
	}
	return &row, nil
}
