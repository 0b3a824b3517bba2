package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/llm"
	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/prompt"
)

// extractionMaxChars bounds the Markdown sent to the question extractor.
const extractionMaxChars = 25000

// ImageStore uploads the conversion bundle's images to the object store.
type ImageStore interface {
	UploadImagesFromZip(ctx context.Context, zipPath, userID, jobID string) (map[string]string, error)
}

// DocumentStore persists a document and its questions atomically.
type DocumentStore interface {
	CreateWithQuestions(ctx context.Context, doc *models.Document, questions []*models.Question) error
}

// PersistenceStage publishes the images, rewrites their references to served
// URLs, extracts the questions with an LLM, and stores everything in one
// transaction.
type PersistenceStage struct {
	store ImageStore
	llm   llm.Client
	docs  DocumentStore
}

// NewPersistenceStage creates the persistence stage.
func NewPersistenceStage(store ImageStore, client llm.Client, docs DocumentStore) *PersistenceStage {
	return &PersistenceStage{store: store, llm: client, docs: docs}
}

// Run builds and stores the Document with its Questions. A failure sets the
// state's error message and leaves DocumentID and QuestionIDs unset.
func (s *PersistenceStage) Run(ctx context.Context, st *State) {
	slog.Info("Persistence stage", "job_id", st.JobID)

	if !st.HasContent() {
		slog.Warn("No content to persist", "job_id", st.JobID)
		st.Metadata["persistence_skipped"] = "no content"
		return
	}

	markdown := st.CleanedMarkdown
	if markdown == "" {
		markdown = st.RawMarkdown
	}

	if st.OutputZipPath != "" {
		urlMap, err := s.store.UploadImagesFromZip(ctx, st.OutputZipPath, st.UserID, st.JobID.String())
		if err != nil {
			st.ErrorMessage = fmt.Sprintf("Failed to upload document images: %v", err)
			slog.Error("Image upload failed", "job_id", st.JobID, "error", err)
			return
		}
		markdown = rewriteImageRefs(markdown, urlMap)
	}
	st.PublicMarkdown = markdown

	questions, err := s.extractQuestions(ctx, markdown)
	if err != nil {
		st.ErrorMessage = fmt.Sprintf("Question extraction failed: %v", err)
		slog.Error("Question extraction failed", "job_id", st.JobID, "error", err)
		return
	}
	slog.Info("Extracted questions", "job_id", st.JobID, "count", len(questions))

	doc := &models.Document{
		UserID:          st.UserID,
		Filename:        st.DocumentFilename,
		SourceURL:       st.DocumentURL,
		JobID:           st.JobID,
		FileType:        st.FileType,
		RawMarkdown:     st.RawMarkdown,
		CleanedMarkdown: optional(st.CleanedMarkdown),
		PublicMarkdown:  optional(st.PublicMarkdown),
	}
	if err := s.docs.CreateWithQuestions(ctx, doc, questions); err != nil {
		st.ErrorMessage = fmt.Sprintf("Failed to persist document: %v", err)
		slog.Error("Document persistence failed", "job_id", st.JobID, "error", err)
		return
	}

	st.DocumentID = &doc.ID
	st.QuestionIDs = make([]uuid.UUID, len(questions))
	for i, q := range questions {
		st.QuestionIDs[i] = q.ID
	}
}

// extractQuestions asks the LLM for the document's questions as a JSON
// array. Non-conforming entries are dropped, not fatal.
func (s *PersistenceStage) extractQuestions(ctx context.Context, markdown string) ([]*models.Question, error) {
	p, err := prompt.Build(prompt.TemplateExtraction, map[string]string{
		"markdown_content": truncateWithMarker(markdown, extractionMaxChars),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction prompt: %w", err)
	}

	response, err := s.llm.Invoke(ctx, p)
	if err != nil {
		return nil, err
	}

	entries := llm.ParseArray(response)
	questions := make([]*models.Question, 0, len(entries))
	for _, entry := range entries {
		q := questionFromEntry(entry)
		if q == nil {
			continue
		}
		q.QuestionNumber = len(questions) + 1
		questions = append(questions, q)
	}
	return questions, nil
}

// questionFromEntry maps one extracted JSON object to a Question, returning
// nil when the entry has no usable text.
func questionFromEntry(entry map[string]any) *models.Question {
	text, _ := entry["question_text"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	q := &models.Question{
		QuestionText: text,
		QuestionType: models.QuestionTypeOpenEnded,
	}
	if kind, ok := entry["question_type"].(string); ok && models.ValidQuestionType(kind) {
		q.QuestionType = models.QuestionType(kind)
	}
	if n := numberValue(entry["question_number"]); n > 0 {
		q.QuestionNumber = int(n)
	}
	if raw, ok := entry["options"].(map[string]any); ok && len(raw) > 0 {
		options := models.OptionMap{}
		for label, value := range raw {
			if text, ok := value.(string); ok {
				options[label] = text
			}
		}
		if len(options) > 0 {
			q.Options = options
		}
	}
	if raw, ok := entry["image_urls"].([]any); ok {
		for _, item := range raw {
			if u, ok := item.(string); ok && u != "" {
				q.ImageURLs = append(q.ImageURLs, u)
			}
		}
	}

	// Options belong to multiple-choice questions only. Stray options on
	// other kinds are dropped; a multiple-choice entry without options
	// degrades to open-ended.
	if q.QuestionType == models.QuestionTypeMultipleChoice {
		if len(q.Options) == 0 {
			q.QuestionType = models.QuestionTypeOpenEnded
		}
	} else {
		q.Options = nil
	}
	return q
}

// rewriteImageRefs replaces every local image reference in the Markdown with
// its served URL, in both Markdown link and HTML src form. Longest refs go
// first so "artifacts/image_10.png" is never clobbered by a rewrite of
// "image_1".
func rewriteImageRefs(markdown string, urlMap map[string]string) string {
	refs := make([]string, 0, len(urlMap))
	for ref := range urlMap {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return len(refs[i]) > len(refs[j]) })

	for _, ref := range refs {
		servedURL := urlMap[ref]
		markdown = strings.ReplaceAll(markdown, "]("+ref+")", "]("+servedURL+")")
		markdown = strings.ReplaceAll(markdown, `src="`+ref+`"`, `src="`+servedURL+`"`)
		markdown = strings.ReplaceAll(markdown, "src='"+ref+"'", "src='"+servedURL+"'")
	}
	return markdown
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
