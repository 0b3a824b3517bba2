package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doculord/doculord/pkg/docling"
)

// Converter is the document-converter surface the pipeline needs.
type Converter interface {
	ConvertFileToZip(ctx context.Context, filePath, fileType, jobID string, opts *docling.Options) (string, error)
	DownloadToTemp(ctx context.Context, url, filename string) (string, error)
	CleanupTempFile(path string)
}

// IngestionStage downloads the source document and converts it to a ZIP
// bundle of Markdown plus extracted images.
type IngestionStage struct {
	converter Converter
}

// NewIngestionStage creates the ingestion stage.
func NewIngestionStage(converter Converter) *IngestionStage {
	return &IngestionStage{converter: converter}
}

// Run detects the document kind, downloads the source (or reuses the file
// from a previous validation attempt) and runs the ZIP conversion. A failure
// sets the state's error message; the source file is kept either way so a
// retry can reuse it.
func (s *IngestionStage) Run(ctx context.Context, st *State) {
	slog.Info("Ingestion stage", "job_id", st.JobID, "attempt", st.ValidationAttempts+1)

	if st.FileType == "" {
		source := st.DocumentFilename
		if source == "" {
			source = st.DocumentURL
		}
		st.FileType = docling.DetectDocumentType(source)
		slog.Info("Detected document type", "job_id", st.JobID, "file_type", st.FileType)
	}

	if st.FileType == docling.KindUnknown {
		// No converter kind for this extension. Skip the conversion entirely;
		// with no content produced the orchestrator fails the job.
		st.Metadata["ingestion_skipped"] = "unknown document type"
		slog.Warn("Unknown document type, skipping conversion",
			"job_id", st.JobID, "url", st.DocumentURL)
		return
	}

	if st.ValidationAttempts > 0 && st.SourceFilePath != "" {
		slog.Info("Reusing downloaded source for retry",
			"job_id", st.JobID, "path", st.SourceFilePath)
	} else {
		localPath, err := s.converter.DownloadToTemp(ctx, st.DocumentURL, st.DocumentFilename)
		if err != nil {
			st.ErrorMessage = fmt.Sprintf("Failed to download source document: %v", err)
			slog.Error("Ingestion download failed", "job_id", st.JobID, "error", err)
			return
		}
		st.SourceFilePath = localPath
	}

	opts := st.DoclingOptions
	if opts == nil {
		opts = docling.DefaultOptions()
	}

	zipPath, err := s.converter.ConvertFileToZip(ctx, st.SourceFilePath, st.FileType, st.JobID.String(), opts)
	if err != nil {
		st.ErrorMessage = fmt.Sprintf("Document conversion failed: %v", err)
		slog.Error("Ingestion conversion failed", "job_id", st.JobID, "error", err)
		return
	}
	st.OutputZipPath = zipPath
	slog.Info("Ingestion complete", "job_id", st.JobID, "zip", zipPath)
}
