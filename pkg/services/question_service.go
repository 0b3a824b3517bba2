package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
)

// QuestionService reads and mutates individual questions.
type QuestionService struct {
	db *database.Client
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(db *database.Client) *QuestionService {
	return &QuestionService{db: db}
}

// Get fetches a question by ID.
func (s *QuestionService) Get(ctx context.Context, questionID uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := s.db.GetContext(ctx, &q, `SELECT * FROM questions WHERE id = $1`, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question %s: %w", questionID, err)
	}
	return &q, nil
}

// ListByIDs loads the given questions in document order. Missing IDs are
// silently absent from the result.
func (s *QuestionService) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Question, error) {
	if len(ids) == 0 {
		return []models.Question{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT * FROM questions WHERE id IN (?) ORDER BY question_number ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build question query: %w", err)
	}
	questions := []models.Question{}
	if err := s.db.SelectContext(ctx, &questions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return questions, nil
}

// ApplyClassification writes the derived educational metadata and flags the
// question as classified.
func (s *QuestionService) ApplyClassification(ctx context.Context, c models.Classification) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET topic = $2, subtopic = $3, difficulty = $4, grade_level = $5,
		    cognitive_level = $6, tags = $7, is_classified = TRUE, updated_at = now()
		WHERE id = $1`,
		c.QuestionID, c.Topic, c.Subtopic, c.Difficulty, c.GradeLevel,
		c.CognitiveLevel, models.StringList(c.Tags))
	if err != nil {
		return fmt.Errorf("failed to classify question %s: %w", c.QuestionID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmbedding stores a question's embedding and flags it searchable.
func (s *QuestionService) SetEmbedding(ctx context.Context, questionID uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET embedding = $2, is_embedded = TRUE, updated_at = now()
		WHERE id = $1`,
		questionID, vec)
	if err != nil {
		return fmt.Errorf("failed to store embedding for question %s: %w", questionID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionUpdate carries the editable fields of a question. Nil pointers
// leave the stored value unchanged.
type QuestionUpdate struct {
	QuestionText  string
	Options       models.OptionMap
	CorrectAnswer *string
}

// Update edits a question's text and optionally its options and answer,
// returning the updated row.
func (s *QuestionService) Update(ctx context.Context, questionID uuid.UUID, upd QuestionUpdate) (*models.Question, error) {
	if upd.QuestionText == "" {
		return nil, NewValidationError("question_text", "required")
	}

	q, err := s.Get(ctx, questionID)
	if err != nil {
		return nil, err
	}

	q.QuestionText = upd.QuestionText
	if upd.Options != nil {
		q.Options = upd.Options
	}
	if upd.CorrectAnswer != nil {
		q.CorrectAnswer = upd.CorrectAnswer
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE questions
		SET question_text = $2, options = $3, correct_answer = $4, updated_at = now()
		WHERE id = $1`,
		q.ID, q.QuestionText, q.Options, q.CorrectAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to update question %s: %w", questionID, err)
	}

	slog.Info("Updated question", "question_id", questionID)
	return s.Get(ctx, questionID)
}
