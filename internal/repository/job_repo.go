package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/argenomics/arg_go_server/internal/model"
)

// StaleJobMessage is written on jobs reaped by ReapStale.
const StaleJobMessage = "Job timeout - probably interrupted"

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// JobPatch enumerates every field a lifecycle callback may update. Nil fields
// are left untouched. Unknown fields simply do not exist here.
type JobPatch struct {
	Status       *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	PID          *int
	OutputDir    *string
	InputType    *string
	RunNumber    *int
	ExitCode     *int
	ErrorMessage *string
}

func (p *JobPatch) fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.StartedAt != nil {
		fields["started_at"] = *p.StartedAt
	}
	if p.CompletedAt != nil {
		fields["completed_at"] = *p.CompletedAt
	}
	if p.PID != nil {
		fields["pid"] = *p.PID
	}
	if p.OutputDir != nil {
		fields["output_dir"] = *p.OutputDir
	}
	if p.InputType != nil {
		fields["input_type"] = *p.InputType
	}
	if p.RunNumber != nil {
		fields["run_number"] = *p.RunNumber
	}
	if p.ExitCode != nil {
		fields["exit_code"] = *p.ExitCode
	}
	if p.ErrorMessage != nil {
		fields["error_message"] = *p.ErrorMessage
	}
	return fields
}

func (r *JobRepository) Create(job *model.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id string) (*model.Job, error) {
	var job model.Job
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Patch applies a partial update. Returns gorm.ErrRecordNotFound when the job
// does not exist.
func (r *JobRepository) Patch(id string, patch *JobPatch) error {
	fields := patch.fields()
	if len(fields) == 0 {
		return nil
	}

	var exists int64
	if err := r.db.Model(&model.Job{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return gorm.ErrRecordNotFound
	}

	return r.db.Model(&model.Job{}).Where("id = ?", id).Updates(fields).Error
}

// List returns jobs ordered by creation time descending, newest first.
func (r *JobRepository) List(status string, limit, offset int) ([]*model.Job, error) {
	var jobs []*model.Job
	query := r.db.Model(&model.Job{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) Count(status string) (int64, error) {
	var total int64
	query := r.db.Model(&model.Job{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&total).Error
	return total, err
}

// MaxRunNumber returns the highest run number recorded for a sample, or 0.
func (r *JobRepository) MaxRunNumber(sampleID string) (int, error) {
	var max *int
	err := r.db.Model(&model.Job{}).
		Where("sample_id = ?", sampleID).
		Select("MAX(run_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// ReapStale fails any job still RUNNING whose started_at is older than
// maxAge. A reaped job is terminal, so a second pass is a no-op for it.
// Returns the number of jobs transitioned.
func (r *JobRepository) ReapStale(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := r.db.Model(&model.Job{}).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", model.StatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        model.StatusFailed,
			"error_message": StaleJobMessage,
		})
	return result.RowsAffected, result.Error
}

func (r *JobRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Job{}).Error
}

// DeleteAll removes every job and returns how many were deleted.
func (r *JobRepository) DeleteAll() (int64, error) {
	result := r.db.Where("1 = 1").Delete(&model.Job{})
	return result.RowsAffected, result.Error
}
