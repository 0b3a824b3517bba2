package pipeline

import (
	"context"
	"log/slog"

	"github.com/doculord/doculord/pkg/embedding"
)

// VectorizationStage embeds every persisted question for similarity search.
// Classification runs first so the embedded text carries topic and keyword
// context. Failures are recorded and swallowed.
type VectorizationStage struct {
	embedder  embedding.Provider
	questions QuestionStore
}

// NewVectorizationStage creates the vectorization stage.
func NewVectorizationStage(embedder embedding.Provider, questions QuestionStore) *VectorizationStage {
	return &VectorizationStage{embedder: embedder, questions: questions}
}

// Run batch-embeds the job's questions; the i-th vector belongs to the i-th
// question.
func (s *VectorizationStage) Run(ctx context.Context, st *State) {
	slog.Info("Vectorization stage", "job_id", st.JobID, "questions", len(st.QuestionIDs))
	if len(st.QuestionIDs) == 0 {
		return
	}

	questions, err := s.questions.ListByIDs(ctx, st.QuestionIDs)
	if err != nil {
		s.recordFailure(st, err)
		return
	}
	if len(questions) == 0 {
		return
	}

	texts := make([]string, len(questions))
	for i := range questions {
		texts[i] = embedding.BuildQuestionText(&questions[i])
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.recordFailure(st, err)
		return
	}
	if len(vectors) != len(questions) {
		slog.Error("Embedding batch size mismatch",
			"job_id", st.JobID, "questions", len(questions), "vectors", len(vectors))
		st.Metadata["vectorization_error"] = "embedding batch size mismatch"
		return
	}

	stored := 0
	for i, q := range questions {
		if err := s.questions.SetEmbedding(ctx, q.ID, vectors[i]); err != nil {
			slog.Warn("Failed to store embedding", "question_id", q.ID, "error", err)
			continue
		}
		stored++
	}
	st.VectorizedCount = stored
	slog.Info("Vectorization complete", "job_id", st.JobID, "embedded", stored)
}

func (s *VectorizationStage) recordFailure(st *State, err error) {
	slog.Error("Vectorization failed, continuing pipeline",
		"job_id", st.JobID, "error", err)
	st.Metadata["vectorization_error"] = err.Error()
	st.VectorizedCount = 0
}
