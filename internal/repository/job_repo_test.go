package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/argenomics/arg_go_server/internal/model"
	"github.com/argenomics/arg_go_server/internal/testutil"
)

func TestJobRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	created := testutil.TestJob(t, db, "SRR1234567", model.StatusPending)

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "SRR1234567", found.SampleID)
	assert.Equal(t, model.StatusPending, found.Status)
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	_, err := repo.GetByID("no-such-job")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_Patch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, "SRR1234567", model.StatusPending)

	status := model.StatusRunning
	pid := 4242
	runNumber := 3
	outputDir := "/work/outputs/SRR1234567_3"
	inputType := model.InputSRA
	started := time.Now()

	err := repo.Patch(job.ID, &JobPatch{
		Status:    &status,
		StartedAt: &started,
		PID:       &pid,
		RunNumber: &runNumber,
		OutputDir: &outputDir,
		InputType: &inputType,
	})
	require.NoError(t, err)

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, found.Status)
	assert.Equal(t, 4242, found.PID)
	assert.Equal(t, 3, found.RunNumber)
	assert.Equal(t, outputDir, found.OutputDir)
	assert.NotNil(t, found.StartedAt)
}

// The PID column must be named pid, not the p_id the default naming strategy
// would produce, or every post-launch patch fails.
func TestJobRepository_Patch_PIDColumn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, "SRR1234567", model.StatusPending)

	pid := 31337
	require.NoError(t, repo.Patch(job.ID, &JobPatch{PID: &pid}))

	var stored int
	require.NoError(t, db.Raw("SELECT pid FROM jobs WHERE id = ?", job.ID).Scan(&stored).Error)
	assert.Equal(t, 31337, stored)
}

func TestJobRepository_Patch_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	status := model.StatusRunning
	err := repo.Patch("no-such-job", &JobPatch{Status: &status})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_Patch_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, "SRR1234567", model.StatusPending)

	require.NoError(t, repo.Patch(job.ID, &JobPatch{}))

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, found.Status)
}

func TestJobRepository_List_OrderAndFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	oldest := testutil.TestJob(t, db, "S1", model.StatusCompleted)
	db.Model(oldest).Update("created_at", time.Now().Add(-2*time.Hour))
	middle := testutil.TestJob(t, db, "S2", model.StatusFailed)
	db.Model(middle).Update("created_at", time.Now().Add(-1*time.Hour))
	newest := testutil.TestJob(t, db, "S3", model.StatusCompleted)

	jobs, err := repo.List("", 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, newest.ID, jobs[0].ID)
	assert.Equal(t, oldest.ID, jobs[2].ID)

	completed, err := repo.List(model.StatusCompleted, 10, 0)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	paged, err := repo.List("", 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, middle.ID, paged[0].ID)
}

func TestJobRepository_Count(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	testutil.TestJob(t, db, "S1", model.StatusPending)
	testutil.TestJob(t, db, "S2", model.StatusRunning)
	testutil.TestJob(t, db, "S3", model.StatusRunning)

	total, err := repo.Count("")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	running, err := repo.Count(model.StatusRunning)
	require.NoError(t, err)
	assert.EqualValues(t, 2, running)
}

func TestJobRepository_MaxRunNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	max, err := repo.MaxRunNumber("SRR1234567")
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	j1 := testutil.TestJob(t, db, "SRR1234567", model.StatusCompleted)
	db.Model(j1).Update("run_number", 2)
	j2 := testutil.TestJob(t, db, "SRR1234567", model.StatusRunning)
	db.Model(j2).Update("run_number", 5)
	other := testutil.TestJob(t, db, "OTHER", model.StatusCompleted)
	db.Model(other).Update("run_number", 9)

	max, err = repo.MaxRunNumber("SRR1234567")
	require.NoError(t, err)
	assert.Equal(t, 5, max)
}

func TestJobRepository_ReapStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	stale := testutil.TestRunningJob(t, db, "OLD", 48*time.Hour)
	fresh := testutil.TestRunningJob(t, db, "FRESH", time.Hour)
	done := testutil.TestJob(t, db, "DONE", model.StatusCompleted)

	reaped, err := repo.ReapStale(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reaped)

	found, err := repo.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, found.Status)
	assert.Equal(t, StaleJobMessage, found.ErrorMessage)

	stillRunning, err := repo.GetByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, stillRunning.Status)

	untouched, err := repo.GetByID(done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, untouched.Status)

	// A second pass is a no-op: the reaped job is terminal now
	reaped, err = repo.ReapStale(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 0, reaped)
}

func TestJobRepository_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, "SRR1234567", model.StatusCompleted)

	require.NoError(t, repo.Delete(job.ID))

	_, err := repo.GetByID(job.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_DeleteAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	testutil.TestJob(t, db, "S1", model.StatusCompleted)
	testutil.TestJob(t, db, "S2", model.StatusFailed)

	count, err := repo.DeleteAll()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	total, err := repo.Count("")
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
