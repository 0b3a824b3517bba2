package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/llm"
	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/prompt"
)

// classificationMaxQuestionChars bounds each question's text in the batch
// prompt.
const classificationMaxQuestionChars = 1000

// Classification defaults used when the LLM returns an unrecognized value.
const (
	defaultTopic          = "other"
	defaultSubtopic       = "general"
	defaultDifficulty     = "medium"
	defaultGradeLevel     = "high_school"
	defaultCognitiveLevel = "comprehension"
)

// QuestionStore is the question persistence surface the late stages need.
type QuestionStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Question, error)
	ApplyClassification(ctx context.Context, c models.Classification) error
	SetEmbedding(ctx context.Context, questionID uuid.UUID, embedding []float32) error
}

// ClassificationStage derives educational metadata for the persisted
// questions in a single batch LLM call. It never aborts the pipeline: any
// failure is recorded in state metadata and the questions simply stay
// unclassified.
type ClassificationStage struct {
	llm       llm.Client
	questions QuestionStore
}

// NewClassificationStage creates the classification stage.
func NewClassificationStage(client llm.Client, questions QuestionStore) *ClassificationStage {
	return &ClassificationStage{llm: client, questions: questions}
}

// Run classifies the questions persisted for this job.
func (s *ClassificationStage) Run(ctx context.Context, st *State) {
	slog.Info("Classification stage", "job_id", st.JobID, "questions", len(st.QuestionIDs))
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

	payload, err := questionsJSON(questions)
	if err != nil {
		s.recordFailure(st, err)
		return
	}
	p, err := prompt.Build(prompt.TemplateClassification, map[string]string{
		"questions_json": payload,
	})
	if err != nil {
		s.recordFailure(st, err)
		return
	}

	response, err := s.llm.Invoke(ctx, p)
	if err != nil {
		s.recordFailure(st, err)
		return
	}

	byID := map[uuid.UUID]models.Classification{}
	for _, entry := range llm.ParseArray(response) {
		c, ok := classificationFromEntry(entry)
		if !ok {
			continue
		}
		byID[c.QuestionID] = c
	}

	classified := 0
	for _, q := range questions {
		c, ok := byID[q.ID]
		if !ok {
			continue
		}
		if err := s.questions.ApplyClassification(ctx, c); err != nil {
			slog.Warn("Failed to store classification",
				"question_id", q.ID, "error", err)
			continue
		}
		classified++
	}
	st.ClassifiedCount = classified
	slog.Info("Classification complete",
		"job_id", st.JobID, "classified", classified, "total", len(questions))
}

func (s *ClassificationStage) recordFailure(st *State, err error) {
	slog.Error("Classification failed, continuing pipeline",
		"job_id", st.JobID, "error", err)
	st.Metadata["classification_error"] = err.Error()
	st.ClassifiedCount = 0
}

// classificationFromEntry validates one LLM result entry. Unknown enum
// values degrade to defaults instead of dropping the whole entry.
func classificationFromEntry(entry map[string]any) (models.Classification, bool) {
	rawID, _ := entry["question_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return models.Classification{}, false
	}

	c := models.Classification{
		QuestionID:     id,
		Topic:          stringOr(entry["topic"], defaultTopic),
		Subtopic:       stringOr(entry["subtopic"], defaultSubtopic),
		Difficulty:     stringOr(entry["difficulty"], defaultDifficulty),
		GradeLevel:     stringOr(entry["grade_level"], defaultGradeLevel),
		CognitiveLevel: stringOr(entry["cognitive_level"], defaultCognitiveLevel),
	}
	if !models.ValidTopic(c.Topic) {
		c.Topic = defaultTopic
	}
	if !models.ValidDifficulty(c.Difficulty) {
		c.Difficulty = defaultDifficulty
	}
	if !models.ValidCognitiveLevel(c.CognitiveLevel) {
		c.CognitiveLevel = defaultCognitiveLevel
	}
	if raw, ok := entry["tags"].([]any); ok {
		for _, item := range raw {
			if tag, ok := item.(string); ok && tag != "" {
				c.Tags = append(c.Tags, tag)
			}
		}
	}
	return c, true
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// questionsJSON renders the classification batch payload.
func questionsJSON(questions []models.Question) (string, error) {
	type entry struct {
		QuestionID   string           `json:"question_id"`
		QuestionText string           `json:"question_text"`
		QuestionType string           `json:"question_type"`
		Options      models.OptionMap `json:"options,omitempty"`
	}
	entries := make([]entry, len(questions))
	for i, q := range questions {
		text := q.QuestionText
		if len(text) > classificationMaxQuestionChars {
			text = text[:classificationMaxQuestionChars]
		}
		entries[i] = entry{
			QuestionID:   q.ID.String(),
			QuestionText: text,
			QuestionType: string(q.QuestionType),
			Options:      q.Options,
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
