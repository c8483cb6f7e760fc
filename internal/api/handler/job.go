package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/argenomics/arg_go_server/internal/model/dto"
	"github.com/argenomics/arg_go_server/internal/pkg/response"
	"github.com/argenomics/arg_go_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// Launch starts a new analysis.
// POST /api/analyze
func (h *JobHandler) Launch(c *gin.Context) {
	var req dto.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	job, err := h.jobService.Launch(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSample) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "failed to launch analysis")
		return
	}

	response.SuccessWithMessage(c, "analysis launched", &dto.LaunchResponse{
		JobID:     job.ID,
		SampleID:  job.SampleID,
		Status:    job.Status,
		RunNumber: job.RunNumber,
		Message:   "Analysis launched successfully",
	})
}

// Status returns job state plus progress heuristics.
// GET /api/status/:job_id
func (h *JobHandler) Status(c *gin.Context) {
	status, err := h.jobService.Status(c.Param("job_id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, "job not found")
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, status)
}

// Results returns the reconciled gene set of a completed job.
// GET /api/results/:job_id
func (h *JobHandler) Results(c *gin.Context) {
	results, err := h.jobService.Results(c.Param("job_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		case errors.Is(err, service.ErrJobNotDone):
			response.ConflictError(c, "job not completed yet")
		case errors.Is(err, service.ErrFileNotFound):
			response.NotFoundError(c, "output directory not found")
		default:
			response.ServerError(c, "failed to parse results")
		}
		return
	}
	response.Success(c, results)
}

// List returns jobs newest first.
// GET /api/jobs?status=&limit=&offset=
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := c.Query("status")

	list, err := h.jobService.List(status, limit, offset)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, list)
}

// Stop kills a running job's process group and fails the job.
// POST /api/jobs/:job_id/stop
func (h *JobHandler) Stop(c *gin.Context) {
	err := h.jobService.Stop(c.Param("job_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		case errors.Is(err, service.ErrJobNotRunning):
			response.ConflictError(c, "job is not running")
		default:
			response.ServerError(c, "")
		}
		return
	}
	response.SuccessWithMessage(c, "job stopped", nil)
}

// Delete removes one job record.
// DELETE /api/jobs/:job_id
func (h *JobHandler) Delete(c *gin.Context) {
	err := h.jobService.Delete(c.Param("job_id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, "job not found")
			return
		}
		response.ServerError(c, "")
		return
	}
	response.SuccessWithMessage(c, "job deleted", nil)
}

// DeleteAll removes every job record.
// DELETE /api/jobs
func (h *JobHandler) DeleteAll(c *gin.Context) {
	count, err := h.jobService.DeleteAll()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, gin.H{"deleted": count})
}
