package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/argenomics/arg_go_server/internal/model"
	"github.com/argenomics/arg_go_server/internal/model/dto"
	"github.com/argenomics/arg_go_server/internal/pipeline"
	"github.com/argenomics/arg_go_server/internal/pkg/pubsub"
	"github.com/argenomics/arg_go_server/internal/reconcile"
	"github.com/argenomics/arg_go_server/internal/repository"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotDone    = errors.New("job not completed yet")
	ErrJobNotRunning = errors.New("job is not running")
	ErrInvalidSample = errors.New("invalid sample identifier")
	ErrForbiddenPath = errors.New("path escapes job output directory")
	ErrFileNotFound  = errors.New("file not found")
)

const stoppedByUserMessage = "Stopped manually by user"

// JobService owns the job lifecycle: it is the only writer of ledger status
// transitions besides the startup reaper.
type JobService struct {
	jobs           *repository.JobRepository
	launcher       *pipeline.Launcher
	publisher      *pubsub.Publisher
	reconciler     *reconcile.Reconciler
	defaultThreads int
}

func NewJobService(
	jobs *repository.JobRepository,
	launcher *pipeline.Launcher,
	publisher *pubsub.Publisher,
	defaultThreads int,
) *JobService {
	if defaultThreads <= 0 {
		defaultThreads = 8
	}
	return &JobService{
		jobs:           jobs,
		launcher:       launcher,
		publisher:      publisher,
		reconciler:     reconcile.NewReconciler(reconcile.SubstringMatcher{}),
		defaultThreads: defaultThreads,
	}
}

// Launch validates the request, records a PENDING job, starts the pipeline
// and moves the job to RUNNING. On a start failure the job stays PENDING and
// the error is returned; PENDING -> FAILED is not a legal edge.
func (s *JobService) Launch(req *dto.LaunchRequest) (*model.Job, error) {
	if err := pipeline.ValidateSampleID(req.SampleID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSample, req.SampleID)
	}

	threads := req.Threads
	if threads <= 0 {
		threads = s.defaultThreads
	}
	prokkaMode := req.ProkkaMode
	if prokkaMode == "" {
		prokkaMode = "auto"
	}

	job := &model.Job{
		ID:            uuid.NewString(),
		SampleID:      req.SampleID,
		Status:        model.StatusPending,
		Threads:       threads,
		ProkkaMode:    prokkaMode,
		ProkkaGenus:   req.ProkkaGenus,
		ProkkaSpecies: req.ProkkaSpecies,
		CreatedAt:     time.Now(),
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}

	jobID := job.ID
	sampleID := req.SampleID

	result, err := s.launcher.Launch(sampleID, pipeline.LaunchParams{
		Threads:       threads,
		ProkkaMode:    prokkaMode,
		ProkkaGenus:   req.ProkkaGenus,
		ProkkaSpecies: req.ProkkaSpecies,
		Force:         req.Force,
	}, func(exitCode int, stdout, stderr string) {
		s.handleCompletion(jobID, sampleID, exitCode, stderr)
	})
	if err != nil {
		log.Printf("Job %s: pipeline launch failed: %v", jobID, err)
		return nil, err
	}

	// The outputs directory is authoritative for run numbering; the ledger
	// falling ahead of it usually means outputs were cleaned by hand.
	if ledgerMax, merr := s.jobs.MaxRunNumber(sampleID); merr == nil && result.RunNumber <= ledgerMax {
		log.Printf("Job %s: run number %d for %s is not above ledger max %d, outputs directory and ledger disagree",
			jobID, result.RunNumber, sampleID, ledgerMax)
	}

	now := time.Now()
	patch := &repository.JobPatch{
		Status:    strptr(model.StatusRunning),
		StartedAt: &now,
		PID:       &result.PID,
		InputType: &result.InputType,
		RunNumber: &result.RunNumber,
		OutputDir: &result.OutputDir,
	}
	if err := s.jobs.Patch(jobID, patch); err != nil {
		return nil, fmt.Errorf("failed to update job after launch: %w", err)
	}

	log.Printf("Job %s: pipeline started (PID %d, run %d)", jobID, result.PID, result.RunNumber)
	s.publish(&pubsub.ProgressMessage{
		JobID:    jobID,
		SampleID: sampleID,
		Status:   model.StatusRunning,
		Step:     "Pipeline started",
	})

	return s.Get(jobID)
}

// handleCompletion is the single completion callback per launched job. Exit
// code zero is the only path to COMPLETED.
func (s *JobService) handleCompletion(jobID, sampleID string, exitCode int, stderr string) {
	now := time.Now()

	if exitCode == 0 {
		patch := &repository.JobPatch{
			Status:      strptr(model.StatusCompleted),
			CompletedAt: &now,
			ExitCode:    &exitCode,
		}
		if err := s.jobs.Patch(jobID, patch); err != nil {
			log.Printf("Job %s: failed to record completion: %v", jobID, err)
			return
		}
		log.Printf("Job %s: completed successfully", jobID)
		s.publish(&pubsub.ProgressMessage{
			JobID:    jobID,
			SampleID: sampleID,
			Status:   model.StatusCompleted,
			Progress: 100,
			Step:     "Analysis completed",
		})
		return
	}

	errMsg := s.scrapeFailure(jobID, sampleID, stderr)
	patch := &repository.JobPatch{
		Status:       strptr(model.StatusFailed),
		CompletedAt:  &now,
		ExitCode:     &exitCode,
		ErrorMessage: &errMsg,
	}
	if err := s.jobs.Patch(jobID, patch); err != nil {
		log.Printf("Job %s: failed to record failure: %v", jobID, err)
		return
	}
	log.Printf("Job %s: failed (exit code %d): %s", jobID, exitCode, truncate(errMsg, 100))
	s.publish(&pubsub.ProgressMessage{
		JobID:    jobID,
		SampleID: sampleID,
		Status:   model.StatusFailed,
		Error:    truncate(errMsg, 200),
	})
}

// scrapeFailure assembles a best-effort error message: marker lines from the
// log tail, then a raw tail slice, then the process stderr tail, then a fixed
// fallback.
func (s *JobService) scrapeFailure(jobID, sampleID, stderr string) string {
	job, err := s.jobs.GetByID(jobID)
	if err == nil && job.RunNumber > 0 {
		tail := s.launcher.LogTail(sampleID, job.RunNumber, 50)
		if msg := pipeline.ScrapeErrorTail(tail); msg != "" {
			return msg
		}
	}
	if stderr != "" {
		return truncate(stderr, 500)
	}
	return "Unknown error"
}

func (s *JobService) Get(jobID string) (*model.Job, error) {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Status builds the client-facing view of a job: progress estimate, a
// human-readable current step and a log preview, all derived from log
// heuristics.
func (s *JobService) Status(jobID string) (*dto.JobStatusResponse, error) {
	job, err := s.Get(jobID)
	if err != nil {
		return nil, err
	}

	resp := &dto.JobStatusResponse{
		JobID:        job.ID,
		SampleID:     job.SampleID,
		Status:       job.Status,
		InputType:    job.InputType,
		RunNumber:    job.RunNumber,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ExitCode:     job.ExitCode,
		ErrorMessage: job.ErrorMessage,
	}

	switch job.Status {
	case model.StatusCompleted:
		resp.Progress = 100
		resp.CurrentStep = "Analysis completed successfully"
		if job.RunNumber > 0 {
			resp.LogsPreview = s.launcher.LogTail(job.SampleID, job.RunNumber, 30)
		}

	case model.StatusFailed:
		if job.InputType != "" && job.RunNumber > 0 {
			resp.Progress = s.launcher.EstimateProgress(job.SampleID, job.RunNumber, job.InputType)
		}
		errMsg := job.ErrorMessage
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		resp.CurrentStep = "Failed: " + truncate(errMsg, 80)
		if job.RunNumber > 0 {
			resp.LogsPreview = s.launcher.LogTail(job.SampleID, job.RunNumber, 30)
		}

	case model.StatusRunning:
		if job.InputType != "" && job.RunNumber > 0 {
			resp.Progress = s.launcher.EstimateProgress(job.SampleID, job.RunNumber, job.InputType)
		}
		if job.RunNumber > 0 {
			resp.LogsPreview = s.launcher.LogTail(job.SampleID, job.RunNumber, 30)
			resp.CurrentStep = currentStepFromLog(resp.LogsPreview)
			if resp.CurrentStep == "" {
				resp.CurrentStep = s.launcher.CurrentPhase(job.SampleID, job.RunNumber, job.InputType)
			}
		}

	default: // PENDING
		resp.CurrentStep = "Waiting to start"
	}

	return resp, nil
}

// currentStepFromLog picks the last [INFO] line from a log preview.
func currentStepFromLog(preview string) string {
	if preview == "" {
		return ""
	}
	lines := strings.Split(preview, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if idx := strings.LastIndex(lines[i], "[INFO]"); idx >= 0 {
			return truncate(strings.TrimSpace(lines[i][idx+len("[INFO]"):]), 100)
		}
	}
	return ""
}

// Stop kills the job's process group best-effort and unconditionally marks
// the job FAILED: the ledger is authoritative for clients regardless of the
// OS-level outcome.
func (s *JobService) Stop(jobID string) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != model.StatusRunning {
		return ErrJobNotRunning
	}

	if job.PID > 0 {
		if killed := s.launcher.Kill(job.PID); !killed {
			log.Printf("Job %s: process %d was already gone", jobID, job.PID)
		}
	}

	now := time.Now()
	errMsg := stoppedByUserMessage
	patch := &repository.JobPatch{
		Status:       strptr(model.StatusFailed),
		CompletedAt:  &now,
		ErrorMessage: &errMsg,
	}
	if err := s.jobs.Patch(jobID, patch); err != nil {
		return fmt.Errorf("failed to record stop: %w", err)
	}

	s.publish(&pubsub.ProgressMessage{
		JobID:    jobID,
		SampleID: job.SampleID,
		Status:   model.StatusFailed,
		Error:    errMsg,
	})
	return nil
}

// Results returns the reconciled gene set for a completed job. The
// classified-genes document written by the report step is preferred over
// recomputation so API results and the rendered report agree exactly.
func (s *JobService) Results(jobID string) (*dto.ResultsResponse, error) {
	job, err := s.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusCompleted {
		return nil, ErrJobNotDone
	}

	parser, err := reconcile.NewParser(job.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, job.OutputDir)
	}

	byTool := parser.ParseAll()

	reconciled, cached := reconcile.LoadClassifiedCache(job.OutputDir)
	if !cached {
		reconciled = s.reconciler.Reconcile(byTool)
	}

	detection := make(map[string]*dto.RatedToolResult, len(byTool))
	totalRaw := 0
	for tool, tr := range byTool {
		rated := &dto.RatedToolResult{Tool: tr.Tool, NumGenes: tr.NumGenes}
		for i := range tr.Genes {
			rated.Genes = append(rated.Genes, dto.RatedGeneCall{
				RawGeneCall: tr.Genes[i],
				Priority:    reconcile.ClassifyCall(&tr.Genes[i]),
			})
		}
		detection[tool] = rated
		totalRaw += tr.NumGenes
	}

	return &dto.ResultsResponse{
		JobID:            job.ID,
		SampleID:         job.SampleID,
		RunNumber:        job.RunNumber,
		InputType:        job.InputType,
		Detection:        detection,
		Genes:            reconciled.Genes,
		Stats:            reconciled.Stats,
		BySource:         reconciled.BySource,
		TotalRawGenes:    totalRaw,
		TotalUniqueGenes: reconciled.Stats.TotalDeduplicated,
		ResistanceTypes:  resistanceTypes(byTool),
		OutputDirectory:  job.OutputDir,
		CompletedAt:      job.CompletedAt,
	}, nil
}

// resistanceTypes collects the distinct resistance classes across all tools.
// Multi-class annotations are ';'-separated in the source files.
func resistanceTypes(byTool map[string]*model.ToolResult) []string {
	seen := make(map[string]struct{})
	for _, tr := range byTool {
		for i := range tr.Genes {
			for _, part := range strings.Split(tr.Genes[i].Resistance, ";") {
				part = strings.TrimSpace(part)
				if part != "" {
					seen[part] = struct{}{}
				}
			}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (s *JobService) List(status string, limit, offset int) (*dto.JobListResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.jobs.List(status, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.jobs.Count(status)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, st := range []string{model.StatusPending, model.StatusRunning, model.StatusCompleted, model.StatusFailed} {
		n, err := s.jobs.Count(st)
		if err != nil {
			return nil, err
		}
		counts[st] = int(n)
	}

	return &dto.JobListResponse{Jobs: jobs, Total: total, Counts: counts}, nil
}

func (s *JobService) Delete(jobID string) error {
	if _, err := s.Get(jobID); err != nil {
		return err
	}
	return s.jobs.Delete(jobID)
}

func (s *JobService) DeleteAll() (int64, error) {
	return s.jobs.DeleteAll()
}

// ReapStale runs the one-time startup sweep over RUNNING jobs. There is no
// periodic sweep.
func (s *JobService) ReapStale(maxAge time.Duration) error {
	reaped, err := s.jobs.ReapStale(maxAge)
	if err != nil {
		return err
	}
	if reaped > 0 {
		log.Printf("Reaped %d stale running job(s)", reaped)
	}
	return nil
}

// ListFiles walks a job's output directory.
func (s *JobService) ListFiles(jobID string) ([]dto.FileEntry, error) {
	job, err := s.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.OutputDir == "" {
		return nil, ErrFileNotFound
	}
	root, err := filepath.Abs(job.OutputDir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		return nil, ErrFileNotFound
	}

	var entries []dto.FileEntry
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		entries = append(entries, dto.FileEntry{
			Path:       rel,
			Name:       d.Name(),
			SizeBytes:  info.Size(),
			FileType:   fileType(d.Name()),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ResolveFile maps a client-supplied relative path to an absolute path inside
// the job's output directory, rejecting anything that escapes it.
func (s *JobService) ResolveFile(jobID, relPath string) (string, error) {
	job, err := s.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.OutputDir == "" {
		return "", ErrFileNotFound
	}

	root, err := filepath.Abs(job.OutputDir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.Abs(filepath.Join(root, relPath))
	if err != nil {
		return "", err
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", ErrForbiddenPath
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", ErrFileNotFound
	}
	return resolved, nil
}

func fileType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tsv":
		return "tsv"
	case ".txt":
		return "text"
	case ".log":
		return "log"
	case ".json":
		return "json"
	case ".html":
		return "html"
	case ".fasta", ".fna", ".fa":
		return "fasta"
	default:
		return "other"
	}
}

func (s *JobService) publish(msg *pubsub.ProgressMessage) {
	if err := s.publisher.PublishProgress(context.Background(), msg); err != nil {
		log.Printf("Failed to publish progress for job %s: %v", msg.JobID, err)
	}
}

func strptr(s string) *string {
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
