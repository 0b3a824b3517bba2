// Package pipeline runs the document-processing stages: ingestion, parsing,
// validation (with a bounded retry loop back to ingestion), persistence,
// classification and vectorization.
package pipeline

import (
	"net/url"
	"path"

	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/docling"
)

// State is the single record threaded through every stage of one job. Each
// stage reads what it needs and writes only its own outputs; the orchestrator
// owns the reference.
type State struct {
	JobID  uuid.UUID
	UserID string

	DocumentURL      string
	DocumentFilename string
	FileType         string

	// Stage outputs.
	RawMarkdown     string
	CleanedMarkdown string
	PublicMarkdown  string
	ImageFiles      []string

	// A fatal stage failure; the orchestrator turns it into a failed job.
	ErrorMessage string
	// Non-fatal stage notes (parsing fallback, classification errors, …).
	Metadata map[string]any

	// Validation loop control.
	ValidationAttempts int
	ValidationPassed   bool
	ValidationFeedback string
	MaxAttemptsReached bool

	// Converter settings. Validation writes the next attempt's overrides
	// here; ingestion consumes them.
	DoclingOptions *docling.Options

	// Temp files. SourceFilePath is the one multi-stage resource: ingestion
	// creates it, validation deletes it on pass or exhaustion.
	OutputZipPath  string
	SourceFilePath string

	// Persistence outputs.
	DocumentID  *uuid.UUID
	QuestionIDs []uuid.UUID

	ClassifiedCount int
	VectorizedCount int
}

// NewState builds the initial state for a job. The document filename is the
// last path segment of the URL, query parameters stripped.
func NewState(jobID uuid.UUID, userID, documentURL string) *State {
	filename := ""
	if parsed, err := url.Parse(documentURL); err == nil {
		filename = path.Base(parsed.Path)
	}
	return &State{
		JobID:            jobID,
		UserID:           userID,
		DocumentURL:      documentURL,
		DocumentFilename: filename,
		Metadata:         map[string]any{},
	}
}

// HasContent reports whether any stage produced Markdown. A run with no
// content and no document is a failure even without an explicit error.
func (s *State) HasContent() bool {
	return s.RawMarkdown != "" || s.CleanedMarkdown != "" || s.PublicMarkdown != ""
}
