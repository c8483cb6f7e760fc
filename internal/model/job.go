package model

import (
	"time"
)

// Job statuses. The only legal transitions are
// PENDING -> RUNNING -> COMPLETED | FAILED.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Input types the pipeline accepts.
const (
	InputSRA      = "SRA"
	InputGenBank  = "GENBANK"
	InputAssembly = "ASSEMBLY"
	InputLocal    = "LOCAL_FASTA"
)

type Job struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	SampleID      string     `gorm:"size:255;not null;index" json:"sample_id"`
	InputType     string     `gorm:"size:20" json:"input_type,omitempty"`
	Status        string     `gorm:"size:20;not null;index" json:"status"`
	RunNumber     int        `json:"run_number,omitempty"`
	OutputDir     string     `gorm:"size:500" json:"output_dir,omitempty"`
	PID           int        `gorm:"column:pid" json:"pid,omitempty"`
	Threads       int        `gorm:"default:8" json:"threads"`
	ProkkaMode    string     `gorm:"size:20;default:auto" json:"prokka_mode"`
	ProkkaGenus   string     `gorm:"size:100" json:"prokka_genus,omitempty"`
	ProkkaSpecies string     `gorm:"size:100" json:"prokka_species,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// IsTerminal reports whether the job can no longer change status.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
