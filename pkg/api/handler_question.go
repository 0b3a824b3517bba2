package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/embedding"
	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/services"
)

// getQuestionHandler handles GET /documents/:id/questions/:question_id.
func (s *Server) getQuestionHandler(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question ID format"})
		return
	}

	question, err := s.questions.Get(c.Request.Context(), questionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// updateQuestionHandler handles PUT /documents/:id/questions/:question_id.
// Text is required; options and correct_answer are left unchanged when
// omitted. Unless re_embed is false the edited text is re-embedded; a failed
// re-embed keeps the stale vector and is only logged.
func (s *Server) updateQuestionHandler(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question ID format"})
		return
	}

	var req QuestionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_text is required"})
		return
	}

	upd := services.QuestionUpdate{
		QuestionText:  req.QuestionText,
		CorrectAnswer: req.CorrectAnswer,
	}
	if req.Options != nil {
		upd.Options = models.OptionMap(req.Options)
	}

	question, err := s.questions.Update(c.Request.Context(), questionID, upd)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	if req.ReEmbed == nil || *req.ReEmbed {
		if err := s.reEmbed(c, questionID); err != nil {
			slog.Warn("Re-embedding failed after question update",
				"question_id", questionID, "error", err)
		} else if refreshed, err := s.questions.Get(c.Request.Context(), questionID); err == nil {
			question = refreshed
		}
	}

	c.JSON(http.StatusOK, question)
}

// reEmbed recomputes and stores the embedding for one question.
func (s *Server) reEmbed(c *gin.Context, questionID uuid.UUID) error {
	question, err := s.questions.Get(c.Request.Context(), questionID)
	if err != nil {
		return err
	}
	vector, err := s.embedder.EmbedText(c.Request.Context(), embedding.BuildQuestionText(question))
	if err != nil {
		return err
	}
	return s.questions.SetEmbedding(c.Request.Context(), questionID, vector)
}
