package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is the persisted output of one successful pipeline run.
// Created by the persistence stage and never mutated afterwards.
type Document struct {
	ID              uuid.UUID `db:"id" json:"document_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Filename        string    `db:"filename" json:"filename"`
	SourceURL       string    `db:"source_url" json:"source_url"`
	JobID           uuid.UUID `db:"job_id" json:"job_id"`
	FileType        string    `db:"file_type" json:"file_type"`
	RawMarkdown     string    `db:"raw_markdown" json:"raw_markdown,omitempty"`
	CleanedMarkdown *string   `db:"cleaned_markdown" json:"cleaned_markdown,omitempty"`
	PublicMarkdown  *string   `db:"public_markdown" json:"public_markdown,omitempty"`
	QuestionCount   int       `db:"question_count" json:"question_count"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Document status values.
const (
	DocumentStatusProcessed = "processed"
)
