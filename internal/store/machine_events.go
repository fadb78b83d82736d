package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"statemachine-engine/pkg/models"
)

// MachineEventRepository implements the MachineEvents operations of spec
// §4.1: the durable fallback path for peer-to-peer socket delivery.
type MachineEventRepository struct {
	db *gorm.DB
}

// Send records a peer event, its durable-fallback write path.
func (r *MachineEventRepository) Send(target, eventType string, source *string, jobID *string, payload *string) (int64, error) {
	evt := models.MachineEvent{
		SourceMachine: source,
		TargetMachine: target,
		EventType:     eventType,
		JobID:         jobID,
		Payload:       payload,
		Status:        models.EventPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.Create(&evt).Error; err != nil {
		return 0, fmt.Errorf("send machine event: %w", err)
	}
	return evt.ID, nil
}

// Pending returns events addressed to machine, oldest first.
func (r *MachineEventRepository) Pending(machine string) ([]models.MachineEvent, error) {
	var events []models.MachineEvent
	err := r.db.Where("target_machine = ? AND status = ?", machine, models.EventPending).
		Order("created_at ASC").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("pending machine events: %w", err)
	}
	return events, nil
}

// MarkProcessed marks an event consumed so it is never re-delivered.
func (r *MachineEventRepository) MarkProcessed(id int64) error {
	now := time.Now().UTC()
	err := r.db.Model(&models.MachineEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.EventProcessed, "processed_at": now}).Error
	if err != nil {
		return fmt.Errorf("mark machine event processed: %w", err)
	}
	return nil
}

// ClearPending marks all pending events for a (target, eventType) pair as
// processed without dispatching them, used by the clear_events action for
// stale-queue hygiene.
func (r *MachineEventRepository) ClearPending(target, eventType string) (int64, error) {
	now := time.Now().UTC()
	q := r.db.Model(&models.MachineEvent{}).Where("target_machine = ? AND status = ?", target, models.EventPending)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	res := q.Updates(map[string]interface{}{"status": models.EventProcessed, "processed_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("clear pending machine events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
