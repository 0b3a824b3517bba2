package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/embedding"
	"github.com/doculord/doculord/pkg/models"
)

// Search limits. Queries are clamped, not rejected, so a sloppy caller still
// gets sensible results.
const (
	searchDefaultLimit = 10
	searchMaxLimit     = 50
)

// SearchResult pairs a question with its similarity to the query, where
// similarity is 1 minus the cosine distance.
type SearchResult struct {
	Question   models.Question `json:"question"`
	Similarity float64         `json:"similarity"`
}

// SearchService runs semantic similarity search over question embeddings.
// Every search is scoped to one user; there is no cross-tenant path.
type SearchService struct {
	db       *database.Client
	embedder embedding.Provider
}

// NewSearchService creates a new SearchService.
func NewSearchService(db *database.Client, embedder embedding.Provider) *SearchService {
	return &SearchService{db: db, embedder: embedder}
}

type searchRow struct {
	models.Question
	Similarity float64 `db:"similarity"`
}

// SearchQuestions embeds the query and returns the user's closest questions
// above minSimilarity, most similar first. An empty query returns no results
// without touching the embedder.
func (s *SearchService) SearchQuestions(ctx context.Context, query, userID string, limit int, minSimilarity float64) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		slog.Warn("Empty search query")
		return []SearchResult{}, nil
	}
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	limit = clampLimit(limit)
	minSimilarity = math.Max(0, math.Min(1, minSimilarity))

	queryEmbedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	rows := []searchRow{}
	err = s.db.SelectContext(ctx, &rows, `
		SELECT q.*, 1 - (q.embedding <=> $2) AS similarity
		FROM questions q
		WHERE q.user_id = $1
		  AND q.is_embedded
		  AND q.embedding IS NOT NULL
		ORDER BY q.embedding <=> $2
		LIMIT $3`,
		userID, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	results := filterBySimilarity(rows, minSimilarity)
	slog.Info("Semantic search",
		"user_id", userID, "candidates", len(rows), "results", len(results))
	return results, nil
}

// FindSimilar returns the questions closest to an existing question, using
// its stored embedding. A missing or unembedded source question yields an
// empty result, not an error.
func (s *SearchService) FindSimilar(ctx context.Context, questionID uuid.UUID, userID string, limit int) ([]SearchResult, error) {
	limit = clampLimit(limit)

	var q models.Question
	err := s.db.GetContext(ctx, &q,
		`SELECT * FROM questions WHERE id = $1 AND user_id = $2`, questionID, userID)
	if err != nil {
		slog.Warn("Similar-question source not found", "question_id", questionID)
		return []SearchResult{}, nil
	}
	if q.Embedding == nil {
		slog.Warn("Similar-question source has no embedding", "question_id", questionID)
		return []SearchResult{}, nil
	}

	rows := []searchRow{}
	err = s.db.SelectContext(ctx, &rows, `
		SELECT q.*, 1 - (q.embedding <=> $2) AS similarity
		FROM questions q
		WHERE q.user_id = $1
		  AND q.is_embedded
		  AND q.embedding IS NOT NULL
		  AND q.id <> $3
		ORDER BY q.embedding <=> $2
		LIMIT $4`,
		userID, *q.Embedding, questionID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar-question query failed: %w", err)
	}

	return filterBySimilarity(rows, 0), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return searchDefaultLimit
	}
	if limit > searchMaxLimit {
		return searchMaxLimit
	}
	return limit
}

func filterBySimilarity(rows []searchRow, minSimilarity float64) []SearchResult {
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < minSimilarity {
			continue
		}
		results = append(results, SearchResult{
			Question:   row.Question,
			Similarity: math.Round(row.Similarity*10000) / 10000,
		})
	}
	return results
}
