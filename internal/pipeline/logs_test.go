package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argenomics/arg_go_server/internal/model"
)

func writeRunLog(t *testing.T, launcher *Launcher, sampleID string, runNumber int, name, content string) string {
	t.Helper()

	logsDir := filepath.Join(launcher.OutputDir(sampleID, runNumber), "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o755))
	path := filepath.Join(logsDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLogFile_NewestWins(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	old := writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_20250101.log", "old run\n")
	newest := writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_20250102.log", "new run\n")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, newest, launcher.LogFile("SRR1234567", 1))
}

func TestLogFile_NoLogs(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")
	assert.Equal(t, "", launcher.LogFile("SRR1234567", 1))

	// A logs dir without matching files is the same as no dir
	logsDir := filepath.Join(launcher.OutputDir("SRR1234567", 1), "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "other.txt"), []byte("x"), 0o644))
	assert.Equal(t, "", launcher.LogFile("SRR1234567", 1))
}

func TestLogTail(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log", "line1\nline2\nline3\nline4\n")

	assert.Equal(t, "line3\nline4", launcher.LogTail("SRR1234567", 1, 2))
	assert.Equal(t, "line1\nline2\nline3\nline4", launcher.LogTail("SRR1234567", 1, 10))
	assert.Equal(t, "", launcher.LogTail("SRR1234567", 2, 10))
}

func TestEstimateProgress_FullPipeline(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	assert.Equal(t, 0, launcher.EstimateProgress("SRR1234567", 1, model.InputSRA))

	writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log",
		"[INFO] Starting\n[INFO] SRA download done\n")
	assert.Equal(t, 10, launcher.EstimateProgress("SRR1234567", 1, model.InputSRA))

	writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log",
		"[INFO] SRA download done\n[INFO] quality CONTROL passed\n[INFO] Assembly finished\n")
	assert.Equal(t, 40, launcher.EstimateProgress("SRR1234567", 1, model.InputSRA))

	writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log",
		"[INFO] Assembly finished\n[INFO] ARG detection running\nPIPELINE COMPLETED SUCCESSFULLY\n")
	assert.Equal(t, 100, launcher.EstimateProgress("SRR1234567", 1, model.InputSRA))
}

func TestEstimateProgress_Accelerated(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	writeRunLog(t, launcher, "NC_000913.3", 1, "pipeline_1.log",
		"[INFO] Annotation started\n")
	assert.Equal(t, 30, launcher.EstimateProgress("NC_000913.3", 1, model.InputGenBank))

	writeRunLog(t, launcher, "NC_000913.3", 1, "pipeline_1.log",
		"[INFO] Annotation started\n[INFO] ARG detection running\n")
	assert.Equal(t, 60, launcher.EstimateProgress("NC_000913.3", 1, model.InputGenBank))
	assert.Equal(t, 60, launcher.EstimateProgress("NC_000913.3", 1, model.InputAssembly))
}

// An append-only log never lowers the estimate.
func TestEstimateProgress_Monotonic(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	content := ""
	last := 0
	for _, line := range []string{
		"[INFO] SRA download starting\n",
		"[INFO] Quality control\n",
		"[INFO] Assembly\n",
		"[INFO] Annotation\n",
		"[INFO] ARG detection\n",
		"[INFO] Reports\n",
		"COMPLETED SUCCESSFULLY\n",
	} {
		content += line
		writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log", content)
		progress := launcher.EstimateProgress("SRR1234567", 1, model.InputSRA)
		assert.GreaterOrEqual(t, progress, last)
		last = progress
	}
	assert.Equal(t, 100, last)
}

func TestCurrentPhase(t *testing.T) {
	launcher := newTestLauncher(t, "exit 0")

	assert.Equal(t, "", launcher.CurrentPhase("SRR1234567", 1, model.InputSRA))

	writeRunLog(t, launcher, "SRR1234567", 1, "pipeline_1.log",
		"[INFO] Assembly finished\n[INFO] Annotation running\n")
	assert.Equal(t, "Annotating genome", launcher.CurrentPhase("SRR1234567", 1, model.InputSRA))
}

func TestScrapeErrorTail_MarkerLines(t *testing.T) {
	tail := strings.Join([]string{
		"[INFO] Assembly finished",
		"[ERROR] prokka crashed",
		"[INFO] cleaning up",
		"Step FAILED with code 2",
	}, "\n")

	got := ScrapeErrorTail(tail)
	assert.Equal(t, "[ERROR] prokka crashed\nStep FAILED with code 2", got)
}

func TestScrapeErrorTail_LastThreeMarkers(t *testing.T) {
	tail := strings.Join([]string{
		"[ERROR] one",
		"[ERROR] two",
		"[ERROR] three",
		"[ERROR] four",
	}, "\n")

	got := ScrapeErrorTail(tail)
	assert.Equal(t, "[ERROR] two\n[ERROR] three\n[ERROR] four", got)
}

func TestScrapeErrorTail_NoMarkers(t *testing.T) {
	short := "[INFO] everything looked fine until it did not"
	assert.Equal(t, short, ScrapeErrorTail(short))

	long := strings.Repeat("x", 600)
	got := ScrapeErrorTail(long)
	assert.Len(t, got, 500)

	assert.Equal(t, "", ScrapeErrorTail(""))
}
