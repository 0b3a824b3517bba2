package embedding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doculord/doculord/pkg/models"
)

const maxKeywordTags = 5

// BuildQuestionText composes the text representation of a question that gets
// embedded. Classification context is prepended so that subject-specific
// queries land near questions from the same domain:
//
//	[topic | subtopic | medium difficulty | grade 9]
//	Keywords: tag1, tag2
//	<question text>
//	A) <option>
//	B) <option>
//
// The function is pure; the same question always yields the same text.
func BuildQuestionText(q *models.Question) string {
	var parts []string

	var contextParts []string
	if q.Topic != nil && *q.Topic != "" {
		contextParts = append(contextParts, *q.Topic)
	}
	if q.Subtopic != nil && *q.Subtopic != "" {
		contextParts = append(contextParts, *q.Subtopic)
	}
	if q.Difficulty != nil && *q.Difficulty != "" {
		contextParts = append(contextParts, *q.Difficulty+" difficulty")
	}
	if q.GradeLevel != nil && *q.GradeLevel != "" {
		contextParts = append(contextParts, "grade "+*q.GradeLevel)
	}
	if len(contextParts) > 0 {
		parts = append(parts, "["+strings.Join(contextParts, " | ")+"]")
	}

	if len(q.Tags) > 0 {
		tags := q.Tags
		if len(tags) > maxKeywordTags {
			tags = tags[:maxKeywordTags]
		}
		parts = append(parts, "Keywords: "+strings.Join(tags, ", "))
	}

	if text := strings.TrimSpace(q.QuestionText); text != "" {
		parts = append(parts, text)
	}

	if len(q.Options) > 0 {
		labels := make([]string, 0, len(q.Options))
		for label := range q.Options {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			parts = append(parts, fmt.Sprintf("%s) %s", label, q.Options[label]))
		}
	}

	return strings.Join(parts, "\n")
}

// BuildQuestionTexts maps BuildQuestionText over a batch.
func BuildQuestionTexts(questions []*models.Question) []string {
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = BuildQuestionText(q)
	}
	return texts
}
