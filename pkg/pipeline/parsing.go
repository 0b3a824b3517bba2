package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/doculord/doculord/pkg/llm"
	"github.com/doculord/doculord/pkg/prompt"
)

// parsingMaxChars bounds how much Markdown is sent for cleanup. Cleanup
// needs more context than validation.
const parsingMaxChars = 30000

// ParsingStage cleans the converted Markdown with an LLM for display. It
// never fails the pipeline: on any problem the raw Markdown is carried
// forward unchanged.
type ParsingStage struct {
	llm llm.Client
}

// NewParsingStage creates the parsing stage.
func NewParsingStage(client llm.Client) *ParsingStage {
	return &ParsingStage{llm: client}
}

// Run loads the Markdown and image list from the conversion bundle, asks the
// LLM for a display-ready cleanup, and stores the result beside the ZIP.
func (s *ParsingStage) Run(ctx context.Context, st *State) {
	slog.Info("Parsing stage", "job_id", st.JobID)

	if st.OutputZipPath == "" {
		st.Metadata["parsing_error"] = "no conversion output to parse"
		return
	}

	markdown, images, err := readConversionZip(st.OutputZipPath)
	if err != nil {
		st.Metadata["parsing_error"] = err.Error()
		slog.Error("Failed to read conversion bundle", "job_id", st.JobID, "error", err)
		return
	}
	if markdown == "" {
		st.Metadata["parsing_error"] = "no markdown content found in ZIP"
		slog.Error("Conversion bundle has no Markdown", "job_id", st.JobID)
		return
	}

	st.RawMarkdown = markdown
	st.ImageFiles = images
	slog.Info("Loaded converted Markdown",
		"job_id", st.JobID, "chars", len(markdown), "images", len(images))

	cleaned := s.cleanupWithLLM(ctx, markdown, images)
	if cleaned == "" {
		slog.Warn("LLM cleanup failed, using original markdown", "job_id", st.JobID)
		st.CleanedMarkdown = markdown
		st.Metadata["parsing_fallback"] = true
		return
	}

	st.CleanedMarkdown = cleaned
	st.Metadata["original_markdown_length"] = len(markdown)
	st.Metadata["cleaned_markdown_length"] = len(cleaned)
	s.saveCleanedMarkdown(st.OutputZipPath, cleaned)
}

func (s *ParsingStage) cleanupWithLLM(ctx context.Context, markdown string, images []string) string {
	imageList := "No images found"
	if len(images) > 0 {
		var b strings.Builder
		for i, img := range images {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- " + img)
		}
		imageList = b.String()
	}

	p, err := prompt.Build(prompt.TemplateParsing, map[string]string{
		"markdown_content": truncateWithMarker(markdown, parsingMaxChars),
		"image_list":       imageList,
	})
	if err != nil {
		slog.Error("Failed to build parsing prompt", "error", err)
		return ""
	}

	response, err := s.llm.Invoke(ctx, p)
	if err != nil {
		slog.Error("LLM parsing call failed", "error", err)
		return ""
	}
	return stripMarkdownFence(response)
}

// saveCleanedMarkdown writes the cleaned content next to the ZIP so it
// survives for inspection; a write failure is only logged.
func (s *ParsingStage) saveCleanedMarkdown(zipPath, cleaned string) {
	outPath := filepath.Join(filepath.Dir(zipPath), "cleaned.md")
	if err := os.WriteFile(outPath, []byte(cleaned), 0o644); err != nil {
		slog.Warn("Failed to save cleaned markdown", "path", outPath, "error", err)
	}
}

// stripMarkdownFence removes a surrounding code fence the LLM may have added
// despite instructions.
func stripMarkdownFence(text string) string {
	text = strings.TrimSpace(text)
	for _, open := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(text, open) {
			text = strings.TrimSpace(strings.TrimPrefix(text, open))
			break
		}
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}
	return text
}
