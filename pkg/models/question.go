package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// QuestionType classifies the structural kind of a question.
type QuestionType string

// Question types.
const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeOpenEnded      QuestionType = "open_ended"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFillInBlank    QuestionType = "fill_in_blank"
)

// ValidQuestionType reports whether t is one of the recognized kinds.
func ValidQuestionType(t string) bool {
	switch QuestionType(t) {
	case QuestionTypeMultipleChoice, QuestionTypeOpenEnded, QuestionTypeTrueFalse, QuestionTypeFillInBlank:
		return true
	}
	return false
}

// Topics is the closed set of classification subjects.
var Topics = []string{
	"math", "physics", "chemistry", "biology", "history", "geography",
	"literature", "language", "computer_science", "economics", "other",
}

// Difficulties is the closed set of difficulty levels.
var Difficulties = []string{"easy", "medium", "hard"}

// CognitiveLevels is Bloom's taxonomy, lowest tier first.
var CognitiveLevels = []string{
	"knowledge", "comprehension", "application", "analysis", "synthesis", "evaluation",
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidTopic reports whether v is in the closed topic set.
func ValidTopic(v string) bool { return contains(Topics, v) }

// ValidDifficulty reports whether v is a recognized difficulty.
func ValidDifficulty(v string) bool { return contains(Difficulties, v) }

// ValidCognitiveLevel reports whether v is one of Bloom's six tiers.
func ValidCognitiveLevel(v string) bool { return contains(CognitiveLevels, v) }

// OptionMap maps an option label ("A".."E") to its text. Stored as JSONB.
type OptionMap map[string]string

// Value implements driver.Valuer.
func (m OptionMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *OptionMap) Scan(src any) error {
	return scanJSON(src, m)
}

// StringList is a JSONB-backed list of strings (tags, image URLs).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

// Question is a single educational item extracted from a document.
//
// Lifecycle: created by the persistence stage; classification fields filled
// by the classification stage; the embedding filled by the vectorization
// stage. Later edits through the API may re-embed.
type Question struct {
	ID             uuid.UUID        `db:"id" json:"question_id"`
	UserID         string           `db:"user_id" json:"user_id"`
	DocumentID     uuid.UUID        `db:"document_id" json:"document_id"`
	QuestionNumber int              `db:"question_number" json:"question_number"`
	QuestionText   string           `db:"question_text" json:"question_text"`
	QuestionType   QuestionType     `db:"question_type" json:"question_type"`
	Options        OptionMap        `db:"options" json:"options,omitempty"`
	ImageURLs      StringList       `db:"image_urls" json:"image_urls,omitempty"`
	CorrectAnswer  *string          `db:"correct_answer" json:"correct_answer,omitempty"`
	Topic          *string          `db:"topic" json:"topic,omitempty"`
	Subtopic       *string          `db:"subtopic" json:"subtopic,omitempty"`
	Difficulty     *string          `db:"difficulty" json:"difficulty,omitempty"`
	GradeLevel     *string          `db:"grade_level" json:"grade_level,omitempty"`
	CognitiveLevel *string          `db:"cognitive_level" json:"cognitive_level,omitempty"`
	Tags           StringList       `db:"tags" json:"tags,omitempty"`
	IsClassified   bool             `db:"is_classified" json:"is_classified"`
	Embedding      *pgvector.Vector `db:"embedding" json:"-"`
	IsEmbedded     bool             `db:"is_embedded" json:"is_embedded"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Classification carries the educational metadata derived for one question.
type Classification struct {
	QuestionID     uuid.UUID `json:"question_id"`
	Topic          string    `json:"topic"`
	Subtopic       string    `json:"subtopic"`
	Difficulty     string    `json:"difficulty"`
	GradeLevel     string    `json:"grade_level"`
	CognitiveLevel string    `json:"cognitive_level"`
	Tags           []string  `json:"tags"`
}
