package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/argenomics/arg_go_server/internal/model"
)

// TestJob inserts a job with sensible defaults and the given status.
func TestJob(t *testing.T, db *gorm.DB, sampleID, status string) *model.Job {
	t.Helper()

	job := &model.Job{
		ID:         uuid.NewString(),
		SampleID:   sampleID,
		Status:     status,
		Threads:    8,
		ProkkaMode: "auto",
		CreatedAt:  time.Now(),
	}
	if status != model.StatusPending {
		now := time.Now()
		job.StartedAt = &now
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}
	return job
}

// TestRunningJob inserts a RUNNING job whose started_at is shifted by age
// into the past. Used by reaper tests.
func TestRunningJob(t *testing.T, db *gorm.DB, sampleID string, age time.Duration) *model.Job {
	t.Helper()

	started := time.Now().Add(-age)
	job := &model.Job{
		ID:         uuid.NewString(),
		SampleID:   sampleID,
		Status:     model.StatusRunning,
		Threads:    8,
		ProkkaMode: "auto",
		CreatedAt:  started,
		StartedAt:  &started,
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}
	return job
}
