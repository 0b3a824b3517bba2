package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/models"
)

// processDocHandler handles POST /process-doc. It records the job in status
// queued and returns immediately; a worker pool claims the job and runs the
// pipeline. Poll GET /jobs/:id for progress.
func (s *Server) processDocHandler(c *gin.Context) {
	var req ProcessDocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_url and user_id are required"})
		return
	}

	documentURL := strings.TrimSpace(req.DocumentURL)
	userID := strings.TrimSpace(req.UserID)
	if documentURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_url is required and cannot be empty"})
		return
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required and cannot be empty"})
		return
	}

	job, err := s.jobs.Create(c.Request.Context(), userID, documentURL)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProcessDocResponse{
		JobID:   job.ID.String(),
		Status:  string(models.JobStatusQueued),
		Message: "Document processing queued. Use GET /jobs/{job_id} to check status.",
	})
}

// getJobHandler handles GET /jobs/:id.
func (s *Server) getJobHandler(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID format"})
		return
	}

	job, err := s.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// cancelJobHandler handles POST /jobs/:id/cancel. Cancellation reaches only
// jobs processing on this replica; queued or finished jobs are not
// cancellable.
func (s *Server) cancelJobHandler(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID format"})
		return
	}

	if s.pool == nil || !s.pool.CancelJob(jobID) {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not currently processing"})
		return
	}

	c.JSON(http.StatusOK, CancelResponse{
		JobID:   jobID.String(),
		Message: "Cancellation requested",
	})
}
