package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// searchQuestionsHandler handles GET /questions/search. Query parameters:
// q (query text), user_id (required), limit (clamped by the service to
// [1,50]), min_similarity (0..1).
func (s *Server) searchQuestionsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	query := c.Query("q")

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: must be an integer"})
			return
		}
		limit = n
	}

	minSimilarity := 0.0
	if v := c.Query("min_similarity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_similarity: must be a number"})
			return
		}
		minSimilarity = f
	}

	results, err := s.search.SearchQuestions(c.Request.Context(), query, userID, limit, minSimilarity)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// similarQuestionsHandler handles GET /questions/:id/similar: related
// questions ranked by stored-embedding similarity, excluding the source.
func (s *Server) similarQuestionsHandler(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question ID format"})
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: must be an integer"})
			return
		}
		limit = n
	}

	results, err := s.search.FindSimilar(c.Request.Context(), questionID, userID, limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}
