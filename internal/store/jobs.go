package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"statemachine-engine/internal/metrics"
	"statemachine-engine/pkg/models"
)

// JobRepository implements the Jobs operations of spec §4.1. Every method
// opens its own unit of work against the shared *gorm.DB; none hold a
// connection across calls.
type JobRepository struct {
	db *gorm.DB
}

// Create inserts a new job row. Returns *DuplicateKeyError if id already
// exists.
func (r *JobRepository) Create(id, jobType string, machine *string, source *string, priority int, data, metadata models.JSONBlob) error {
	if data == nil {
		data = models.JSONBlob{}
	}
	if metadata == nil {
		metadata = models.JSONBlob{}
	}

	var existing models.Job
	err := r.db.Where("job_id = ?", id).First(&existing).Error
	if err == nil {
		return &DuplicateKeyError{ID: id}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check existing job: %w", err)
	}

	job := models.Job{
		ID:          id,
		JobType:     jobType,
		MachineType: machine,
		SourceJobID: source,
		Priority:    priority,
		Status:      models.JobPending,
		CreatedAt:   time.Now().UTC(),
		Data:        data,
		Metadata:    metadata,
		Result:      models.JSONBlob{},
	}
	if err := r.db.Create(&job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetNext atomically claims the pending row with the lowest priority then
// earliest created_at, filtered by jobType if non-empty and by machine
// only when machine is non-nil (spec P3: machine == nil matches any
// machine_type, including non-null values).
func (r *JobRepository) GetNext(jobType string, machine *string) (*models.Job, error) {
	var job models.Job

	metrics.Get().JobClaimAttemptsTotal.WithLabelValues(labelOr(jobType, "any")).Inc()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", models.JobPending)
		if jobType != "" {
			q = q.Where("job_type = ?", jobType)
		}
		if machine != nil {
			q = q.Where("machine_type = ?", *machine)
		}
		q = q.Order("priority ASC, created_at ASC")

		if err := q.Limit(1).First(&job).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Job{}).
			Where("job_id = ? AND status = ?", job.ID, models.JobPending).
			Updates(map[string]interface{}{"status": models.JobProcessing, "started_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		job.Status = models.JobProcessing
		job.StartedAt = &now
		return nil
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next job: %w", err)
	}
	metrics.Get().JobClaimSuccessesTotal.WithLabelValues(labelOr(jobType, "any")).Inc()
	return &job, nil
}

func labelOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// GetPending is a non-mutating batch read for controllers that plan to
// claim individually.
func (r *JobRepository) GetPending(jobType string, machine *string, limit int) ([]models.Job, error) {
	q := r.db.Where("status = ?", models.JobPending)
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	if machine != nil {
		q = q.Where("machine_type = ?", *machine)
	}
	q = q.Order("priority ASC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("get pending jobs: %w", err)
	}
	return jobs, nil
}

// Claim is a compare-and-swap pending -> processing for a single job ID.
// Returns true only if the row was pending at the time.
func (r *JobRepository) Claim(id string) (bool, error) {
	metrics.Get().JobClaimAttemptsTotal.WithLabelValues("by_id").Inc()

	now := time.Now().UTC()
	res := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", id, models.JobPending).
		Updates(map[string]interface{}{"status": models.JobProcessing, "started_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("claim job: %w", res.Error)
	}
	claimed := res.RowsAffected > 0
	if claimed {
		metrics.Get().JobClaimSuccessesTotal.WithLabelValues("by_id").Inc()
	}
	return claimed, nil
}

// Complete sets a job to its terminal completed status.
func (r *JobRepository) Complete(id string, result models.JSONBlob) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{"status": models.JobCompleted, "completed_at": now}
	if result != nil {
		updates["result"] = result
	}
	res := r.db.Model(&models.Job{}).Where("job_id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("complete job: %w", res.Error)
	}
	return nil
}

// Fail sets a job to its terminal failed status with an error message.
func (r *JobRepository) Fail(id, message string) error {
	now := time.Now().UTC()
	res := r.db.Model(&models.Job{}).Where("job_id = ?", id).
		Updates(map[string]interface{}{"status": models.JobFailed, "completed_at": now, "error_message": message})
	if res.Error != nil {
		return fmt.Errorf("fail job: %w", res.Error)
	}
	return nil
}

// Get reads a single job by ID.
func (r *JobRepository) Get(id string) (*models.Job, error) {
	var job models.Job
	err := r.db.Where("job_id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns jobs matching an optional status filter, newest first.
func (r *JobRepository) ListJobs(status models.JobStatus, limit int) ([]models.Job, error) {
	q := r.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs counts jobs matching an optional status filter.
func (r *JobRepository) CountJobs(status models.JobStatus) (int64, error) {
	q := r.db.Model(&models.Job{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}
