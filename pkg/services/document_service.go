package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
)

// DocumentService persists processed documents and their questions.
type DocumentService struct {
	db *database.Client
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(db *database.Client) *DocumentService {
	return &DocumentService{db: db}
}

// CreateWithQuestions inserts a document and its questions in one
// transaction. Either everything lands or nothing does; a partially
// persisted document would poison later listing and search.
func (s *DocumentService) CreateWithQuestions(ctx context.Context, doc *models.Document, questions []*models.Question) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusProcessed
	}
	doc.QuestionCount = len(questions)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents
			(id, user_id, filename, source_url, job_id, file_type,
			 raw_markdown, cleaned_markdown, public_markdown,
			 question_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.UserID, doc.Filename, doc.SourceURL, doc.JobID, doc.FileType,
		doc.RawMarkdown, doc.CleanedMarkdown, doc.PublicMarkdown,
		doc.QuestionCount, doc.Status, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	for i, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.UserID = doc.UserID
		q.DocumentID = doc.ID
		if q.QuestionNumber == 0 {
			q.QuestionNumber = i + 1
		}
		now := time.Now().UTC()
		q.CreatedAt = now
		q.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO questions
				(id, user_id, document_id, question_number, question_text,
				 question_type, options, image_urls, correct_answer,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			q.ID, q.UserID, q.DocumentID, q.QuestionNumber, q.QuestionText,
			q.QuestionType, q.Options, q.ImageURLs, q.CorrectAnswer,
			q.CreatedAt, q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert question %d: %w", q.QuestionNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document transaction: %w", err)
	}

	slog.Info("Persisted document",
		"document_id", doc.ID, "job_id", doc.JobID, "questions", len(questions))
	return nil
}

// Get fetches a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id = $1`, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}
	return &doc, nil
}

// ListByUser returns one page of a user's documents, newest first, with the
// total count for pagination.
func (s *DocumentService) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Document, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT count(*) FROM documents WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents for user %s: %w", userID, err)
	}

	docs := []models.Document{}
	err := s.db.SelectContext(ctx, &docs, `
		SELECT * FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents for user %s: %w", userID, err)
	}
	return docs, total, nil
}

// ListQuestions returns one page of a document's questions in document order,
// with the total count.
func (s *DocumentService) ListQuestions(ctx context.Context, documentID uuid.UUID, page, pageSize int) ([]models.Question, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT count(*) FROM questions WHERE document_id = $1`, documentID); err != nil {
		return nil, 0, fmt.Errorf("failed to count questions for document %s: %w", documentID, err)
	}

	questions := []models.Question{}
	err := s.db.SelectContext(ctx, &questions, `
		SELECT * FROM questions
		WHERE document_id = $1
		ORDER BY question_number ASC
		LIMIT $2 OFFSET $3`,
		documentID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list questions for document %s: %w", documentID, err)
	}
	return questions, total, nil
}
