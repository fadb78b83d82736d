package store

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"statemachine-engine/pkg/models"
)

// RealtimeEventRepository implements the RealtimeEvents operations of
// spec §4.1. Log never raises: telemetry loss is preferable to crashing
// the engine, so every error is swallowed here and logged instead of
// returned.
type RealtimeEventRepository struct {
	db *gorm.DB
}

// Log records a telemetry event. Returns (id, true) on success, (0,
// false) on any failure — callers must not treat a false return as fatal.
func (r *RealtimeEventRepository) Log(machine, eventType string, payload models.JSONBlob) (int64, bool) {
	if payload == nil {
		payload = models.JSONBlob{}
	}
	evt := models.RealtimeEvent{
		MachineName: machine,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.Create(&evt).Error; err != nil {
		zap.L().Warn("realtime event log failed, swallowing", zap.Error(err), zap.String("machine", machine), zap.String("event_type", eventType))
		return 0, false
	}
	return evt.ID, true
}

// GetUnconsumed returns events with ID > sinceID that have not yet been
// marked consumed, oldest first, bounded by limit.
func (r *RealtimeEventRepository) GetUnconsumed(sinceID int64, limit int) ([]models.RealtimeEvent, error) {
	q := r.db.Where("id > ? AND consumed = ?", sinceID, false).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []models.RealtimeEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkConsumed flags a batch of realtime events as consumed.
func (r *RealtimeEventRepository) MarkConsumed(ids []int64) bool {
	if len(ids) == 0 {
		return true
	}
	now := time.Now().UTC()
	err := r.db.Model(&models.RealtimeEvent{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": now}).Error
	if err != nil {
		zap.L().Warn("mark consumed failed", zap.Error(err))
		return false
	}
	return true
}

// CleanupConsumed deletes consumed rows older than the given age, in
// hours, and returns the number removed.
func (r *RealtimeEventRepository) CleanupConsumed(olderThanHours int) int64 {
	cutoff := time.Now().UTC().Add(-time.Duration(olderThanHours) * time.Hour)
	res := r.db.Where("consumed = ? AND consumed_at < ?", true, cutoff).Delete(&models.RealtimeEvent{})
	if res.Error != nil {
		zap.L().Warn("cleanup consumed failed", zap.Error(res.Error))
		return 0
	}
	return res.RowsAffected
}
