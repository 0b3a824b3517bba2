package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doculord/doculord/pkg/storage"
)

// serveImageHandler handles GET /images/:user_id/:job_id/:filename. It
// proxies stored images so clients never need object store credentials.
// Responses are immutable per filename, hence the 1-year cache.
func (s *Server) serveImageHandler(c *gin.Context) {
	userID := c.Param("user_id")
	jobID := c.Param("job_id")
	filename := c.Param("filename")
	if userID == "" || jobID == "" || filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, job_id, and filename are required"})
		return
	}

	content, contentType, err := s.store.GetImage(c.Request.Context(), userID, jobID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found: " + filename})
			return
		}
		slog.Error("Failed to serve image", "filename", filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve image"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, contentType, content)
}
