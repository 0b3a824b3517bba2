package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculord/doculord/pkg/models"
	testdb "github.com/doculord/doculord/test/database"
)

// TestServiceIntegration exercises the services together against a real
// PostgreSQL instance: job lifecycle, document persistence, classification,
// embedding, editing and semantic search.
func TestServiceIntegration(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	jobService := NewJobService(client)
	documentService := NewDocumentService(client)
	questionService := NewQuestionService(client)
	searchService := NewSearchService(client, &fakeSearchEmbedder{vector: axisVector(0)})

	t.Run("full document lifecycle", func(t *testing.T) {
		// 1. Create job and walk it through the pipeline statuses.
		job, err := jobService.Create(ctx, "user-1", "https://example.com/exam.pdf")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusQueued, job.Status)
		assert.Nil(t, job.StartedAt)

		jobService.UpdateStatus(ctx, job.ID, models.JobStatusIngesting, "")
		updated, err := jobService.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusIngesting, updated.Status)
		assert.NotNil(t, updated.StartedAt, "first transition away from queued stamps started_at")

		// 2. Persist a document with questions in one transaction.
		doc := &models.Document{
			UserID:      "user-1",
			Filename:    "exam.pdf",
			SourceURL:   "https://example.com/exam.pdf",
			JobID:       job.ID,
			FileType:    "pdf",
			RawMarkdown: "# Exam",
		}
		questions := []*models.Question{
			{
				QuestionText: "What is the area of a triangle with base 6 and height 4?",
				QuestionType: models.QuestionTypeMultipleChoice,
				Options:      models.OptionMap{"A": "12", "B": "24", "C": "10"},
			},
			{
				QuestionText: "Explain photosynthesis.",
				QuestionType: models.QuestionTypeOpenEnded,
			},
		}
		require.NoError(t, documentService.CreateWithQuestions(ctx, doc, questions))
		assert.Equal(t, 2, doc.QuestionCount)
		assert.Equal(t, 1, questions[0].QuestionNumber)
		assert.Equal(t, 2, questions[1].QuestionNumber)

		// 3. Complete the job with results.
		require.NoError(t, jobService.Complete(ctx, job.ID, &doc.ID, 2))
		completed, err := jobService.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, completed.Status)
		require.NotNil(t, completed.DocumentID)
		assert.Equal(t, doc.ID, *completed.DocumentID)
		assert.Equal(t, 2, completed.QuestionCount)
		assert.NotNil(t, completed.CompletedAt)

		// 4. Classify the first question.
		err = questionService.ApplyClassification(ctx, models.Classification{
			QuestionID:     questions[0].ID,
			Topic:          "math",
			Subtopic:       "geometry",
			Difficulty:     "easy",
			GradeLevel:     "middle_school",
			CognitiveLevel: "application",
			Tags:           []string{"triangle", "area"},
		})
		require.NoError(t, err)

		classified, err := questionService.Get(ctx, questions[0].ID)
		require.NoError(t, err)
		assert.True(t, classified.IsClassified)
		require.NotNil(t, classified.Topic)
		assert.Equal(t, "math", *classified.Topic)
		assert.Equal(t, models.StringList{"triangle", "area"}, classified.Tags)

		// 5. Embed both questions along different axes.
		require.NoError(t, questionService.SetEmbedding(ctx, questions[0].ID, axisVector(0)))
		require.NoError(t, questionService.SetEmbedding(ctx, questions[1].ID, axisVector(1)))

		embedded, err := questionService.Get(ctx, questions[0].ID)
		require.NoError(t, err)
		assert.True(t, embedded.IsEmbedded)
		require.NotNil(t, embedded.Embedding)

		// 6. Search. The fake embedder returns axis 0, so the triangle
		// question should win with similarity 1 and the orthogonal one
		// should fall below the threshold.
		results, err := searchService.SearchQuestions(ctx, "triangle area", "user-1", 10, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, questions[0].ID, results[0].Question.ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 0.001)

		// Without a threshold both come back, most similar first.
		results, err = searchService.SearchQuestions(ctx, "triangle area", "user-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, questions[0].ID, results[0].Question.ID)

		// Other users see nothing.
		results, err = searchService.SearchQuestions(ctx, "triangle area", "user-2", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, results)

		// 7. Related questions by stored embedding.
		similar, err := searchService.FindSimilar(ctx, questions[0].ID, "user-1", 5)
		require.NoError(t, err)
		require.Len(t, similar, 1)
		assert.Equal(t, questions[1].ID, similar[0].Question.ID)

		// 8. Edit the question.
		edited, err := questionService.Update(ctx, questions[0].ID, QuestionUpdate{
			QuestionText: "What is the area of a triangle with base 8 and height 3?",
			Options:      models.OptionMap{"A": "12", "B": "11", "C": "24"},
		})
		require.NoError(t, err)
		assert.Equal(t, "What is the area of a triangle with base 8 and height 3?", edited.QuestionText)
		assert.Equal(t, "11", edited.Options["B"])

		// 9. Listings.
		docs, total, err := documentService.ListByUser(ctx, "user-1", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, docs, 1)
		assert.Equal(t, doc.ID, docs[0].ID)

		qs, qTotal, err := documentService.ListQuestions(ctx, doc.ID, 1, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, qTotal)
		require.Len(t, qs, 2)
		assert.Equal(t, 1, qs[0].QuestionNumber)

		jobs, err := jobService.ListByUser(ctx, "user-1", 20, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
	})

	t.Run("failed job records message", func(t *testing.T) {
		job, err := jobService.Create(ctx, "user-1", "https://example.com/bad.pdf")
		require.NoError(t, err)

		require.NoError(t, jobService.Fail(ctx, job.ID, "Processing failed: No content extracted from document. The source URL may be invalid or expired."))
		failed, err := jobService.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, failed.Status)
		require.NotNil(t, failed.ErrorMessage)
		assert.Contains(t, *failed.ErrorMessage, "No content extracted")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := jobService.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = documentService.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = questionService.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		err = questionService.SetEmbedding(ctx, uuid.New(), axisVector(0))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := jobService.Create(ctx, "", "https://example.com/doc.pdf")
		assert.True(t, IsValidationError(err))

		_, err = searchService.SearchQuestions(ctx, "query", "", 10, 0)
		assert.True(t, IsValidationError(err))

		results, err := searchService.SearchQuestions(ctx, "   ", "user-1", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestCredentialService(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	credService := NewCredentialService(client)

	cred, err := credService.Create(ctx, "svc-portal", "super-secret-value", "portal backend")
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret-value", cred.ClientSecret, "secret must be stored hashed")

	authed, err := credService.Authenticate(ctx, "svc-portal", "super-secret-value")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, authed.ID)

	_, err = credService.Authenticate(ctx, "svc-portal", "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = credService.Authenticate(ctx, "unknown-client", "super-secret-value")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = credService.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Inactive credentials never match.
	_, err = client.ExecContext(ctx,
		`UPDATE client_credentials SET is_active = FALSE WHERE client_id = $1`, "svc-portal")
	require.NoError(t, err)
	_, err = credService.Authenticate(ctx, "svc-portal", "super-secret-value")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// fakeSearchEmbedder returns a fixed vector for every query.
type fakeSearchEmbedder struct {
	vector []float32
}

func (f *fakeSearchEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return f.vector, nil
}

func (f *fakeSearchEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeSearchEmbedder) Dimensions() int { return len(f.vector) }

// axisVector builds a 384-dim unit vector along one axis, so cosine
// similarity between distinct axes is exactly 0.
func axisVector(axis int) []float32 {
	v := make([]float32, 384)
	v[axis] = 1
	return v
}
