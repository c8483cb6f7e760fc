package pipeline

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/argenomics/arg_go_server/internal/model"
)

// OnComplete is invoked exactly once when a launched pipeline exits. Stdout
// and stderr are always empty: the process streams go to the null device and
// the pipeline writes its own log files.
type OnComplete func(exitCode int, stdout, stderr string)

// LaunchError carries a user-facing message next to the raw cause.
type LaunchError struct {
	UserMessage string
	RawError    error
}

func (e *LaunchError) Error() string {
	return e.UserMessage
}

func (e *LaunchError) Unwrap() error {
	return e.RawError
}

var (
	sraPattern      = regexp.MustCompile(`^[SED]RR[0-9]+`)
	genbankPattern  = regexp.MustCompile(`^(CP|NC_|NZ_)[0-9]+`)
	assemblyPattern = regexp.MustCompile(`^GC[AF]_[0-9]+`)
	sampleIDPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// Launcher starts the external pipeline script and supervises it. It is the
// only component that touches child processes.
type Launcher struct {
	script    string
	workDir   string
	condaInit string
}

// LaunchResult describes a started pipeline run.
type LaunchResult struct {
	PID       int
	Command   string
	InputType string
	RunNumber int
	OutputDir string
}

// LaunchParams are the pipeline arguments for one run.
type LaunchParams struct {
	Threads       int
	ProkkaMode    string
	ProkkaGenus   string
	ProkkaSpecies string
	Force         bool
}

func NewLauncher(script, workDir, condaInit string) (*Launcher, error) {
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("pipeline script not found: %s", script)
	}
	return &Launcher{
		script:    script,
		workDir:   workDir,
		condaInit: condaInit,
	}, nil
}

// ValidateSampleID rejects identifiers that cannot be passed to the pipeline
// command line.
func ValidateSampleID(sampleID string) error {
	if sampleID == "" || !sampleIDPattern.MatchString(sampleID) {
		return fmt.Errorf("invalid sample identifier: %q", sampleID)
	}
	return nil
}

// DetectInputType classifies a sample identifier. Pattern priority is a fixed
// contract: SRA accession, then GenBank, then Assembly, then local FASTA
// path, and SRA as the fallback.
func DetectInputType(sampleID string) string {
	switch {
	case sraPattern.MatchString(sampleID):
		return model.InputSRA
	case genbankPattern.MatchString(sampleID):
		return model.InputGenBank
	case assemblyPattern.MatchString(sampleID):
		return model.InputAssembly
	case strings.HasSuffix(sampleID, ".fasta"),
		strings.HasSuffix(sampleID, ".fna"),
		strings.HasSuffix(sampleID, ".fa"),
		strings.Contains(sampleID, "/"):
		return model.InputLocal
	default:
		return model.InputSRA
	}
}

// NextRunNumber scans the outputs root for directories named exactly
// {sampleID}_{integer} and returns max+1 (gaps are never filled). The same
// numbering runs inside the pipeline script; both sides must compute the same
// directory name. No lock covers the race between two launches of one sample.
func (l *Launcher) NextRunNumber(sampleID string) int {
	outputsDir := filepath.Join(l.workDir, "outputs")
	entries, err := os.ReadDir(outputsDir)
	if err != nil {
		return 1
	}

	prefix := sampleID + "_"
	max := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		n, err := strconv.Atoi(entry.Name()[len(prefix):])
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// OutputDir is a pure function of sample identifier and run number.
func (l *Launcher) OutputDir(sampleID string, runNumber int) string {
	return filepath.Join(l.workDir, "outputs", fmt.Sprintf("%s_%d", sampleID, runNumber))
}

// BuildCommand assembles the full bash command line for one run.
func (l *Launcher) BuildCommand(sampleID string, params LaunchParams) string {
	parts := []string{
		fmt.Sprintf("bash %s", l.script),
		sampleID,
		fmt.Sprintf("--threads %d", params.Threads),
		fmt.Sprintf("--prokka-mode %s", params.ProkkaMode),
	}

	if params.ProkkaMode == "custom" {
		if params.ProkkaGenus != "" {
			parts = append(parts, fmt.Sprintf("--prokka-genus %s", params.ProkkaGenus))
		}
		if params.ProkkaSpecies != "" {
			parts = append(parts, fmt.Sprintf("--prokka-species %s", params.ProkkaSpecies))
		}
	}

	if params.Force {
		parts = append(parts, "--force")
	}

	cmd := strings.Join(parts, " ")

	if l.condaInit != "" {
		if _, err := os.Stat(l.condaInit); err == nil {
			cmd = fmt.Sprintf("source %s && %s", l.condaInit, cmd)
		}
	}

	return cmd
}

// Launch starts the pipeline in its own session so the whole process tree can
// be signalled later, and registers a goroutine that waits for exit and calls
// onComplete exactly once. Stdout/stderr are not captured: piping them can
// deadlock the pipeline, which logs to files anyway.
func (l *Launcher) Launch(sampleID string, params LaunchParams, onComplete OnComplete) (*LaunchResult, error) {
	inputType := DetectInputType(sampleID)
	runNumber := l.NextRunNumber(sampleID)
	command := l.BuildCommand(sampleID, params)

	log.Printf("Launching pipeline for %s (run %d)", sampleID, runNumber)

	cmd := exec.Command("/bin/bash", "-c", command)
	cmd.Dir = l.workDir
	cmd.Stdout = nil // inherits the null device
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{
			UserMessage: "Failed to start analysis pipeline",
			RawError:    fmt.Errorf("start pipeline: %w", err),
		}
	}

	if onComplete != nil {
		go l.monitorCompletion(cmd, onComplete)
	}

	return &LaunchResult{
		PID:       cmd.Process.Pid,
		Command:   command,
		InputType: inputType,
		RunNumber: runNumber,
		OutputDir: l.OutputDir(sampleID, runNumber),
	}, nil
}

func (l *Launcher) monitorCompletion(cmd *exec.Cmd, onComplete OnComplete) {
	err := cmd.Wait()

	exitCode := 0
	if err != nil {
		exitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}

	onComplete(exitCode, "", "")
}

// Kill terminates the whole process group of pid. Returns false, without an
// error, when the process has already exited. Relies on Unix session/group
// semantics set up by Launch.
func (l *Launcher) Kill(pid int) bool {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		log.Printf("Process %d already gone", pid)
		return false
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		log.Printf("Failed to signal process group %d: %v", pgid, err)
		return false
	}

	log.Printf("Job PID %d terminated", pid)
	return true
}
