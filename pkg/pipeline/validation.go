package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/doculord/doculord/pkg/docling"
	"github.com/doculord/doculord/pkg/llm"
	"github.com/doculord/doculord/pkg/prompt"
)

const (
	// validationMaxChars bounds the Markdown sample sent to the reviewer.
	validationMaxChars = 15000
	// validationPassScore is the minimum score treated as a pass when the
	// reviewer omits an explicit verdict.
	validationPassScore = 70
	// DefaultMaxValidationAttempts bounds the ingestion retry loop.
	DefaultMaxValidationAttempts = 3
)

// ValidationStage scores the conversion quality with an LLM and decides
// whether to retry ingestion with different converter options. It fails
// open: if the reviewer is unreachable or returns garbage, the pipeline
// proceeds.
type ValidationStage struct {
	llm         llm.Client
	converter   Converter
	maxAttempts int
}

// NewValidationStage creates the validation stage.
func NewValidationStage(client llm.Client, converter Converter) *ValidationStage {
	return &ValidationStage{
		llm:         client,
		converter:   converter,
		maxAttempts: DefaultMaxValidationAttempts,
	}
}

// SetMaxAttempts overrides the retry budget. Values below 1 are ignored.
func (s *ValidationStage) SetMaxAttempts(n int) {
	if n >= 1 {
		s.maxAttempts = n
	}
}

// Run reviews the converted Markdown. On a failed review with attempts left
// it writes the next converter-option override into the state and leaves
// ValidationPassed false so the orchestrator loops back to ingestion. The
// downloaded source file is deleted once validation passes or attempts are
// exhausted.
func (s *ValidationStage) Run(ctx context.Context, st *State) {
	st.ValidationAttempts++
	slog.Info("Validation stage",
		"job_id", st.JobID, "attempt", st.ValidationAttempts, "max", s.maxAttempts)

	defer func() {
		if st.ValidationPassed {
			s.cleanupSource(st)
		}
	}()

	if st.OutputZipPath == "" {
		// Nothing to review; do not block the pipeline.
		st.ValidationPassed = true
		return
	}

	markdown, images, err := readConversionZip(st.OutputZipPath)
	if err != nil || markdown == "" {
		slog.Warn("Cannot read conversion bundle for validation, proceeding",
			"job_id", st.JobID, "error", err)
		st.ValidationPassed = true
		return
	}

	score, passed, issues, ok := s.review(ctx, st, markdown, images)
	if !ok {
		slog.Warn("Validator unavailable, proceeding without review", "job_id", st.JobID)
		st.ValidationPassed = true
		return
	}

	st.ValidationFeedback = strings.Join(issues, "; ")
	slog.Info("Validation verdict",
		"job_id", st.JobID, "score", score, "passed", passed, "issues", len(issues))

	if passed {
		st.ValidationPassed = true
		return
	}

	if st.ValidationAttempts >= s.maxAttempts {
		slog.Warn("Validation attempts exhausted, proceeding with best effort",
			"job_id", st.JobID, "attempts", st.ValidationAttempts)
		st.ValidationPassed = true
		st.MaxAttemptsReached = true
		st.Metadata["max_attempts_reached"] = true
		st.Metadata["validation_score"] = score
		return
	}

	st.DoclingOptions = retryOptions(st.ValidationAttempts + 1)
	st.ValidationPassed = false
	slog.Info("Scheduling conversion retry with adjusted options",
		"job_id", st.JobID, "next_attempt", st.ValidationAttempts+1)
}

// review runs the LLM reviewer. ok is false when the call or the response
// parse fails entirely.
func (s *ValidationStage) review(ctx context.Context, st *State, markdown string, images []string) (score float64, passed bool, issues []string, ok bool) {
	fileSize := "0"
	if info, err := os.Stat(st.SourceFilePath); err == nil {
		fileSize = strconv.FormatInt(info.Size(), 10)
	}

	p, err := prompt.Build(prompt.TemplateValidation, map[string]string{
		"source_filename":  st.DocumentFilename,
		"file_type":        st.FileType,
		"file_size":        fileSize,
		"markdown_content": truncateWithMarker(markdown, validationMaxChars),
		"image_list":       strings.Join(images, ", "),
	})
	if err != nil {
		slog.Error("Failed to build validation prompt", "error", err)
		return 0, false, nil, false
	}

	response, err := s.llm.Invoke(ctx, p)
	if err != nil {
		slog.Error("Validation LLM call failed", "job_id", st.JobID, "error", err)
		return 0, false, nil, false
	}

	result := llm.ParseObject(response)
	if result == nil {
		return 0, false, nil, false
	}

	score = numberValue(result["score"])
	if v, isBool := result["passed"].(bool); isBool {
		passed = v
	} else {
		passed = score >= validationPassScore
	}
	if raw, isList := result["issues"].([]any); isList {
		for _, item := range raw {
			if s, isStr := item.(string); isStr {
				issues = append(issues, s)
			}
		}
	}
	if rec, isStr := result["recommendation"].(string); isStr && rec != "" {
		issues = append(issues, fmt.Sprintf("recommendation: %s", rec))
	}
	return score, passed, issues, true
}

func (s *ValidationStage) cleanupSource(st *State) {
	if st.SourceFilePath == "" {
		return
	}
	s.converter.CleanupTempFile(st.SourceFilePath)
	st.SourceFilePath = ""
}

// retryOptions returns the converter-option override for the given attempt
// number. The overrides escalate: a different PDF backend with forced
// tesseract OCR first, then the original backend with easyOCR and formula
// enrichment.
func retryOptions(attempt int) *docling.Options {
	opts := docling.DefaultOptions()
	switch {
	case attempt <= 2:
		opts.PDFBackend = docling.PDFBackendDLParseV4
		opts.ForceOCR = true
		opts.OCREngine = docling.OCREngineTesseract
	default:
		opts.PDFBackend = docling.PDFBackendDLParseV2
		opts.ForceOCR = true
		opts.OCREngine = docling.OCREngineEasyOCR
		opts.DoFormulaEnrichment = true
	}
	return opts
}

func numberValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
