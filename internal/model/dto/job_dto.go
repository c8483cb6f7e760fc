package dto

import (
	"time"

	"github.com/argenomics/arg_go_server/internal/model"
)

type LaunchRequest struct {
	SampleID      string `json:"sample_id" binding:"required"`
	Threads       int    `json:"threads"`
	ProkkaMode    string `json:"prokka_mode"`
	ProkkaGenus   string `json:"prokka_genus"`
	ProkkaSpecies string `json:"prokka_species"`
	Force         bool   `json:"force"`
}

type LaunchResponse struct {
	JobID     string `json:"job_id"`
	SampleID  string `json:"sample_id"`
	Status    string `json:"status"`
	RunNumber int    `json:"run_number"`
	Message   string `json:"message"`
}

type JobStatusResponse struct {
	JobID        string     `json:"job_id"`
	SampleID     string     `json:"sample_id"`
	Status       string     `json:"status"`
	InputType    string     `json:"input_type,omitempty"`
	RunNumber    int        `json:"run_number,omitempty"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step,omitempty"`
	LogsPreview  string     `json:"logs_preview,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

type JobListResponse struct {
	Jobs   []*model.Job   `json:"jobs"`
	Total  int64          `json:"total"`
	Counts map[string]int `json:"counts"`
}

// RatedGeneCall is a raw tool call annotated with the shared severity tier.
type RatedGeneCall struct {
	model.RawGeneCall
	Priority string `json:"priority"`
}

type RatedToolResult struct {
	Tool     string          `json:"tool"`
	NumGenes int             `json:"num_genes"`
	Genes    []RatedGeneCall `json:"genes"`
}

type ResultsResponse struct {
	JobID            string                      `json:"job_id"`
	SampleID         string                      `json:"sample_id"`
	RunNumber        int                         `json:"run_number"`
	InputType        string                      `json:"input_type"`
	Detection        map[string]*RatedToolResult `json:"arg_detection"`
	Genes            []model.ReconciledGene      `json:"deduplicated_genes"`
	Stats            model.ReconciliationStats   `json:"deduplication_stats"`
	BySource         map[string]int              `json:"by_source"`
	TotalRawGenes    int                         `json:"total_arg_genes"`
	TotalUniqueGenes int                         `json:"total_unique_genes"`
	ResistanceTypes  []string                    `json:"unique_resistance_types"`
	OutputDirectory  string                      `json:"output_directory"`
	CompletedAt      *time.Time                  `json:"completed_at,omitempty"`
}

type FileEntry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	FileType   string    `json:"file_type"`
	ModifiedAt time.Time `json:"modified_at"`
}
