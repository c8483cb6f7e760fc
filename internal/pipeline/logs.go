package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/argenomics/arg_go_server/internal/model"
)

// checkpoint pairs a phrase the pipeline logs when a phase completes with the
// progress percentage for that phase. The wording tracks the pipeline script;
// this table is the only place it lives.
type checkpoint struct {
	Phrase  string
	Percent int
	Label   string
}

// Full pipeline: SRA and local reads go through download/QC/assembly before
// annotation.
var fullCheckpoints = []checkpoint{
	{"SRA download", 10, "Downloading reads"},
	{"Quality control", 20, "Quality control"},
	{"Assembly", 40, "Assembling genome"},
	{"Annotation", 60, "Annotating genome"},
	{"ARG detection", 80, "Detecting resistance genes"},
	{"Reports", 90, "Generating reports"},
	{"COMPLETED SUCCESSFULLY", 100, "Done"},
}

// Accelerated pipeline: GenBank/Assembly inputs skip QC and assembly.
var acceleratedCheckpoints = []checkpoint{
	{"Annotation", 30, "Annotating genome"},
	{"ARG detection", 60, "Detecting resistance genes"},
	{"Reports", 85, "Generating reports"},
	{"COMPLETED SUCCESSFULLY", 100, "Done"},
}

func checkpointsFor(inputType string) []checkpoint {
	switch inputType {
	case model.InputGenBank, model.InputAssembly:
		return acceleratedCheckpoints
	default:
		return fullCheckpoints
	}
}

// LogFile returns the most recently modified pipeline_*.log under the run's
// logs directory, or "" when none exists yet.
func (l *Launcher) LogFile(sampleID string, runNumber int) string {
	logsDir := filepath.Join(l.OutputDir(sampleID, runNumber), "logs")

	matches, err := filepath.Glob(filepath.Join(logsDir, "pipeline_*.log"))
	if err != nil || len(matches) == 0 {
		return ""
	}

	newest := ""
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = m
			newestMod = mod
		}
	}
	return newest
}

// LogTail returns the last n lines of the run's log, or "" when there is no
// log yet.
func (l *Launcher) LogTail(sampleID string, runNumber, n int) string {
	logFile := l.LogFile(sampleID, runNumber)
	if logFile == "" {
		return ""
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		return ""
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// EstimateProgress scans the run's log for checkpoint phrases and returns the
// percentage of the last phase found anywhere in the text. Matching is plain
// case-insensitive containment, so for an append-only log the estimate never
// decreases. Returns 0 when no log exists yet.
func (l *Launcher) EstimateProgress(sampleID string, runNumber int, inputType string) int {
	logFile := l.LogFile(sampleID, runNumber)
	if logFile == "" {
		return 0
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		return 0
	}
	content := strings.ToLower(string(data))

	progress := 0
	for _, cp := range checkpointsFor(inputType) {
		if strings.Contains(content, strings.ToLower(cp.Phrase)) {
			progress = cp.Percent
		}
	}
	return progress
}

// CurrentPhase returns the label of the furthest checkpoint reached, or ""
// when nothing matched yet. It shares the phrase table with EstimateProgress.
func (l *Launcher) CurrentPhase(sampleID string, runNumber int, inputType string) string {
	logFile := l.LogFile(sampleID, runNumber)
	if logFile == "" {
		return ""
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		return ""
	}
	content := strings.ToLower(string(data))

	label := ""
	for _, cp := range checkpointsFor(inputType) {
		if strings.Contains(content, strings.ToLower(cp.Phrase)) {
			label = cp.Label
		}
	}
	return label
}

var errorMarkers = []string{"[ERROR]", "FAILED", "Exception", "Error"}

// ScrapeErrorTail extracts a best-effort failure message from the end of a
// log: the last three marker lines when any exist, otherwise the last 500
// bytes of the tail. Callers treat the result as display text only.
func ScrapeErrorTail(logTail string) string {
	if logTail == "" {
		return ""
	}

	var errorLines []string
	for _, line := range strings.Split(logTail, "\n") {
		for _, marker := range errorMarkers {
			if strings.Contains(line, marker) {
				errorLines = append(errorLines, line)
				break
			}
		}
	}

	if len(errorLines) > 0 {
		if len(errorLines) > 3 {
			errorLines = errorLines[len(errorLines)-3:]
		}
		return strings.Join(errorLines, "\n")
	}

	if len(logTail) > 500 {
		return logTail[len(logTail)-500:]
	}
	return logTail
}
