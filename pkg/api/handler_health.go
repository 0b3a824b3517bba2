package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doculord/doculord/pkg/version"
)

// healthHandler handles GET /health. Unauthenticated: load balancers and
// orchestration probes call it.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
	}
	if s.pool != nil {
		resp.WorkerPool = s.pool.Health()
	}

	dbHealth, err := s.db.Health(ctx)
	resp.Database = &dbHealth
	if err != nil {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}
