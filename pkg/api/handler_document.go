package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pageParams parses page/page_size query parameters, ignoring invalid
// values. maxPageSize bounds page_size; the service applies its default when
// page_size is absent.
func pageParams(c *gin.Context, defaultPageSize, maxPageSize int) (int, int) {
	page, pageSize := 1, defaultPageSize
	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= maxPageSize {
			pageSize = ps
		}
	}
	return page, pageSize
}

// listDocumentsHandler handles GET /documents.
func (s *Server) listDocumentsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	page, pageSize := pageParams(c, 20, 100)

	docs, total, err := s.documents.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	items := make([]DocumentListItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentListItem(d))
	}
	c.JSON(http.StatusOK, DocumentListResponse{
		Documents: items,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

// getDocumentHandler handles GET /documents/:id.
func (s *Server) getDocumentHandler(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID format"})
		return
	}

	doc, err := s.documents.Get(c.Request.Context(), documentID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, documentDetail(doc))
}

// listQuestionsHandler handles GET /documents/:id/questions.
func (s *Server) listQuestionsHandler(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID format"})
		return
	}
	page, pageSize := pageParams(c, 50, 200)

	questions, total, err := s.documents.ListQuestions(c.Request.Context(), documentID, page, pageSize)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	items := make([]QuestionListItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, questionListItem(q))
	}
	c.JSON(http.StatusOK, QuestionListResponse{
		Questions: items,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}
