package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/argenomics/arg_go_server/internal/pkg/response"
	"github.com/argenomics/arg_go_server/internal/service"
)

type FileHandler struct {
	jobService *service.JobService
}

func NewFileHandler(jobService *service.JobService) *FileHandler {
	return &FileHandler{jobService: jobService}
}

// List returns the files under a job's output directory.
// GET /api/jobs/:job_id/files
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.jobService.ListFiles(c.Param("job_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		case errors.Is(err, service.ErrFileNotFound):
			response.NotFoundError(c, "output directory not found")
		default:
			response.ServerError(c, "")
		}
		return
	}
	response.Success(c, gin.H{"files": files})
}

// Download streams one result file. The path is resolved against the job's
// output directory and anything escaping it is rejected.
// GET /api/jobs/:job_id/files/download?path=...
func (h *FileHandler) Download(c *gin.Context) {
	relPath := c.Query("path")
	if relPath == "" {
		response.ParamError(c, "missing path")
		return
	}

	resolved, err := h.jobService.ResolveFile(c.Param("job_id"), relPath)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		case errors.Is(err, service.ErrForbiddenPath):
			response.PermissionError(c, "access denied")
		case errors.Is(err, service.ErrFileNotFound):
			response.NotFoundError(c, "file not found")
		default:
			response.ServerError(c, "")
		}
		return
	}

	c.FileAttachment(resolved, relPath)
}
