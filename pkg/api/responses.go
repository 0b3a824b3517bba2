package api

import (
	"time"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
	"github.com/doculord/doculord/pkg/queue"
	"github.com/doculord/doculord/pkg/services"
)

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	URL      string `json:"url,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ProcessDocResponse is returned by POST /process-doc.
type ProcessDocResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CancelResponse is returned by POST /jobs/:id/cancel.
type CancelResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// DocumentListItem is one row of GET /documents.
type DocumentListItem struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	QuestionCount int    `json:"question_count"`
	FileType      string `json:"file_type,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// DocumentListResponse is returned by GET /documents.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// DocumentDetail is returned by GET /documents/:id. The raw markdown stays
// internal; clients render the public markdown with served image URLs.
type DocumentDetail struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Filename       string  `json:"filename"`
	SourceURL      string  `json:"source_url,omitempty"`
	Status         string  `json:"status"`
	QuestionCount  int     `json:"question_count"`
	FileType       string  `json:"file_type,omitempty"`
	PublicMarkdown *string `json:"public_markdown,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// QuestionListItem is one row of GET /documents/:id/questions.
type QuestionListItem struct {
	ID             string  `json:"id"`
	QuestionNumber int     `json:"question_number"`
	QuestionType   string  `json:"question_type,omitempty"`
	Topic          *string `json:"topic,omitempty"`
	Difficulty     *string `json:"difficulty,omitempty"`
	Preview        string  `json:"preview"`
}

// QuestionListResponse is returned by GET /documents/:id/questions.
type QuestionListResponse struct {
	Questions []QuestionListItem `json:"questions"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// SearchResponse is returned by GET /questions/search and
// GET /questions/:id/similar.
type SearchResponse struct {
	Results []services.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Database   *database.HealthStatus `json:"database"`
	WorkerPool *queue.PoolHealth      `json:"worker_pool,omitempty"`
}

// questionPreviewLength bounds the text excerpt in question list rows.
const questionPreviewLength = 200

func documentListItem(d models.Document) DocumentListItem {
	return DocumentListItem{
		ID:            d.ID.String(),
		Filename:      d.Filename,
		Status:        d.Status,
		QuestionCount: d.QuestionCount,
		FileType:      d.FileType,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

func documentDetail(d *models.Document) DocumentDetail {
	return DocumentDetail{
		ID:             d.ID.String(),
		UserID:         d.UserID,
		Filename:       d.Filename,
		SourceURL:      d.SourceURL,
		Status:         d.Status,
		QuestionCount:  d.QuestionCount,
		FileType:       d.FileType,
		PublicMarkdown: d.PublicMarkdown,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
}

func questionListItem(q models.Question) QuestionListItem {
	preview := q.QuestionText
	if len(preview) > questionPreviewLength {
		preview = preview[:questionPreviewLength]
	}
	return QuestionListItem{
		ID:             q.ID.String(),
		QuestionNumber: q.QuestionNumber,
		QuestionType:   string(q.QuestionType),
		Topic:          q.Topic,
		Difficulty:     q.Difficulty,
		Preview:        preview,
	}
}
