package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doculord/doculord/pkg/resilience"
)

const serviceName = "docling"

// Result is the outcome of a URL-mode conversion.
type Result struct {
	Markdown string
	Filename string
	Elapsed  time.Duration
}

// Client talks to the Docling conversion service.
type Client struct {
	urlEndpoint  string
	fileEndpoint string
	tempDir      string
	httpClient   *http.Client
	breaker      *resilience.CircuitBreaker
}

// NewClient creates a converter client from cfg.
func NewClient(cfg Config) *Client {
	return &Client{
		urlEndpoint:  cfg.APIURL,
		fileEndpoint: cfg.FileAPIURL,
		tempDir:      cfg.TempDir,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		breaker:      resilience.GetBreaker(serviceName),
	}
}

// apiResponse is the converter's JSON envelope for inbody conversions.
type apiResponse struct {
	Status         string   `json:"status"`
	Errors         []string `json:"errors"`
	ProcessingTime float64  `json:"processing_time"`
	Document       struct {
		MDContent string `json:"md_content"`
		Filename  string `json:"filename"`
	} `json:"document"`
}

// ConvertByURL sends the source URL to the converter and returns the
// converted Markdown inline.
func (c *Client) ConvertByURL(ctx context.Context, documentURL, fileType string, opts *Options) (*Result, error) {
	if err := c.breaker.Check(); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"options": optionsPayload(fileType, opts),
		"sources": []map[string]string{
			{"kind": "http", "url": documentURL},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode converter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.urlEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create converter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = resilience.Transient(fmt.Errorf("converter request failed: %w", err))
		c.breaker.Observe(err)
		return nil, err
	}
	defer resp.Body.Close()

	result, err := c.parseConvertResponse(resp)
	c.breaker.Observe(err)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func (c *Client) parseConvertResponse(resp *http.Response) (*Result, error) {
	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resilience.Transient(fmt.Errorf("converter returned HTTP %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("converter returned HTTP %d: %s", resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("converter returned malformed JSON: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("converter returned status %q: %v", parsed.Status, parsed.Errors)
	}
	if parsed.Document.MDContent == "" {
		return nil, fmt.Errorf("converter response missing md_content")
	}

	slog.Info("Converted document to markdown",
		"chars", len(parsed.Document.MDContent),
		"processing_time", parsed.ProcessingTime)
	return &Result{
		Markdown: parsed.Document.MDContent,
		Filename: parsed.Document.Filename,
	}, nil
}

// ConvertFileToZip sends a local file for conversion with target_type=zip and
// writes the returned bundle to <temp_dir>/<job_id>/output.zip. A JSON
// response where a ZIP was expected is treated as a converter error.
func (c *Client) ConvertFileToZip(ctx context.Context, filePath, fileType, jobID string, opts *Options) (string, error) {
	if err := c.breaker.Check(); err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", fmt.Errorf("source file not found: %w", err)
	}

	if opts == nil {
		opts = DefaultOptions()
	} else {
		opts = opts.Clone()
	}
	opts.TargetType = TargetZip

	jobDir := filepath.Join(c.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job temp directory: %w", err)
	}
	outputPath := filepath.Join(jobDir, "output.zip")

	body, contentType, err := c.buildZipForm(filePath, fileType, opts)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.fileEndpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create converter request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = resilience.Transient(fmt.Errorf("converter request failed: %w", err))
		c.breaker.Observe(err)
		return "", err
	}
	defer resp.Body.Close()

	err = c.saveZipResponse(resp, outputPath)
	c.breaker.Observe(err)
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

// buildZipForm assembles the multipart body. Options are sent both as
// individual form fields and as a JSON blob; the converter accepts either
// shape depending on version.
func (c *Client) buildZipForm(filePath, fileType string, opts *Options) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"target_type":               TargetZip,
		"image_export_mode":         opts.ImageExportMode,
		"include_images":            strconv.FormatBool(opts.IncludeImages),
		"images_scale":              strconv.Itoa(opts.ImagesScale),
		"do_ocr":                    strconv.FormatBool(opts.DoOCR),
		"force_ocr":                 strconv.FormatBool(opts.ForceOCR),
		"ocr_engine":                opts.OCREngine,
		"pdf_backend":               opts.PDFBackend,
		"table_mode":                opts.TableMode,
		"table_cell_matching":       strconv.FormatBool(opts.TableCellMatching),
		"do_table_structure":        strconv.FormatBool(opts.DoTableStructure),
		"abort_on_error":            strconv.FormatBool(opts.AbortOnError),
		"pipeline":                  opts.Pipeline,
		"document_timeout":          strconv.Itoa(opts.DocumentTimeout),
		"do_formula_enrichment":     strconv.FormatBool(opts.DoFormulaEnrichment),
		"do_code_enrichment":        strconv.FormatBool(opts.DoCodeEnrichment),
		"do_picture_classification": strconv.FormatBool(opts.DoPictureClassification),
		"do_picture_description":    strconv.FormatBool(opts.DoPictureDescription),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %q: %w", name, err)
		}
	}

	optionsJSON, err := json.Marshal(optionsPayload(fileType, opts))
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode options: %w", err)
	}
	if err := writer.WriteField("options", string(optionsJSON)); err != nil {
		return nil, "", fmt.Errorf("failed to write options field: %w", err)
	}

	part, err := writer.CreateFormFile("files", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to copy source file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) saveZipResponse(resp *http.Response, outputPath string) error {
	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.Transient(fmt.Errorf("converter returned HTTP %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("converter returned HTTP %d: %s", resp.StatusCode, body)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var parsed apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("converter returned malformed JSON where ZIP was expected: %w", err)
		}
		if parsed.Status == "success" {
			return fmt.Errorf("expected ZIP binary but received JSON response")
		}
		return fmt.Errorf("converter returned status %q: %v", parsed.Status, parsed.Errors)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output ZIP: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to write output ZIP: %w", err)
	}

	slog.Info("Saved converter ZIP output", "path", outputPath, "bytes", written)
	return nil
}

// DownloadToTemp retrieves a URL's bytes into <temp_dir>/<filename> and
// returns the local path.
func (c *Client) DownloadToTemp(ctx context.Context, url, filename string) (string, error) {
	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	filePath := filepath.Join(c.tempDir, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", resilience.Transient(fmt.Errorf("download failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download returned HTTP %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", resilience.Transient(err)
		}
		return "", err
	}

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	slog.Info("Downloaded source file", "path", filePath, "bytes", written)
	return filePath, nil
}

// CleanupTempFile removes a temp file, logging on failure. Best effort.
func (c *Client) CleanupTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to clean up temp file", "path", path, "error", err)
		return
	}
	slog.Debug("Cleaned up temp file", "path", path)
}

// optionsPayload builds the JSON options bag for the converter.
func optionsPayload(fileType string, opts *Options) map[string]any {
	if opts == nil {
		opts = DefaultOptions()
	}
	return map[string]any{
		"from_formats":              []string{fileType},
		"to_formats":                opts.ToFormats,
		"target_type":               opts.TargetType,
		"image_export_mode":         opts.ImageExportMode,
		"do_ocr":                    opts.DoOCR,
		"force_ocr":                 opts.ForceOCR,
		"ocr_engine":                opts.OCREngine,
		"ocr_lang":                  opts.OCRLang,
		"pdf_backend":               opts.PDFBackend,
		"table_mode":                opts.TableMode,
		"table_cell_matching":       opts.TableCellMatching,
		"pipeline":                  opts.Pipeline,
		"page_range":                opts.PageRange,
		"document_timeout":          opts.DocumentTimeout,
		"abort_on_error":            opts.AbortOnError,
		"do_table_structure":        opts.DoTableStructure,
		"include_images":            opts.IncludeImages,
		"images_scale":              opts.ImagesScale,
		"md_page_break_placeholder": opts.MDPageBreakPlaceholder,
		"do_code_enrichment":        opts.DoCodeEnrichment,
		"do_formula_enrichment":     opts.DoFormulaEnrichment,
		"do_picture_classification": opts.DoPictureClassification,
		"do_picture_description":    opts.DoPictureDescription,
	}
}
