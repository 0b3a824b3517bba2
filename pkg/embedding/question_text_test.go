package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doculord/doculord/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestBuildQuestionText_FullyClassifiedMCQ(t *testing.T) {
	q := &models.Question{
		QuestionText: "What is the area of a triangle with base 6 and height 4?",
		QuestionType: models.QuestionTypeMultipleChoice,
		Topic:        strPtr("math"),
		Subtopic:     strPtr("geometry"),
		Difficulty:   strPtr("easy"),
		GradeLevel:   strPtr("7"),
		Tags:         models.StringList{"triangle", "area"},
		Options: models.OptionMap{
			"B": "24",
			"A": "12",
			"C": "10",
		},
	}

	expected := "[math | geometry | easy difficulty | grade 7]\n" +
		"Keywords: triangle, area\n" +
		"What is the area of a triangle with base 6 and height 4?\n" +
		"A) 12\n" +
		"B) 24\n" +
		"C) 10"
	assert.Equal(t, expected, BuildQuestionText(q))
}

func TestBuildQuestionText_UnclassifiedOpenEnded(t *testing.T) {
	q := &models.Question{
		QuestionText: "Explain photosynthesis.",
		QuestionType: models.QuestionTypeOpenEnded,
	}
	assert.Equal(t, "Explain photosynthesis.", BuildQuestionText(q))
}

func TestBuildQuestionText_LimitsTagsToFive(t *testing.T) {
	q := &models.Question{
		QuestionText: "Q",
		Tags:         models.StringList{"a", "b", "c", "d", "e", "f", "g"},
	}
	assert.Equal(t, "Keywords: a, b, c, d, e\nQ", BuildQuestionText(q))
}

func TestBuildQuestionText_Pure(t *testing.T) {
	q := &models.Question{
		QuestionText: "Same every time?",
		Topic:        strPtr("physics"),
		Options:      models.OptionMap{"A": "yes", "B": "no"},
	}
	first := BuildQuestionText(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildQuestionText(q))
	}
}

func TestBuildQuestionTexts(t *testing.T) {
	questions := []*models.Question{
		{QuestionText: "one"},
		{QuestionText: "two"},
	}
	assert.Equal(t, []string{"one", "two"}, BuildQuestionTexts(questions))
}
