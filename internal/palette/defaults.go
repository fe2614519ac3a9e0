// Package palette builds new questions and computes the nested edits the
// builder applies to existing ones.
package palette

import (
	"github.com/google/uuid"
	"github.com/stemsi/formcraft/internal/model"
)

// Default content of newly added questions.
const (
	CategorizeTitle    = "New Categorize Question"
	ClozeTitle         = "New Cloze Question"
	ComprehensionTitle = "New Comprehension Question"

	ClozeSentence        = "The quick brown ___ jumps over the lazy ___."
	ComprehensionPassage = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."
	SubQuestionPrompt    = "What is the main idea?"
)

// NewID returns a fresh identifier for questions and their nested entries.
func NewID() string { return uuid.NewString() }

// NewQuestion returns the default question of type t with fresh ids.
func NewQuestion(t model.QuestionType) (model.Question, error) {
	switch t {
	case model.QuestionTypeCategorize:
		return NewCategorize(), nil
	case model.QuestionTypeCloze:
		return NewCloze(), nil
	case model.QuestionTypeComprehension:
		return NewComprehension(), nil
	}
	_, err := model.NewBody(t)
	return model.Question{}, err
}

// NewCategorize returns two categories with one item in each.
func NewCategorize() model.Question {
	return model.Question{
		ID:    NewID(),
		Title: CategorizeTitle,
		Body: &model.Categorize{
			Categories: []string{"Category 1", "Category 2"},
			Items: []model.CategorizeItem{
				{ID: NewID(), Text: "Item 1", Category: "Category 1"},
				{ID: NewID(), Text: "Item 2", Category: "Category 2"},
			},
		},
	}
}

// NewCloze returns a two-blank sentence.
func NewCloze() model.Question {
	return model.Question{
		ID:    NewID(),
		Title: ClozeTitle,
		Body: &model.Cloze{
			Sentence: ClozeSentence,
			Blanks: []model.ClozeBlank{
				{ID: NewID(), Position: 16, CorrectAnswer: "fox"},
				{ID: NewID(), Position: 40, CorrectAnswer: "dog"},
			},
		},
	}
}

// NewComprehension returns a passage with one multiple-choice sub-question.
func NewComprehension() model.Question {
	answer := "Option A"
	return model.Question{
		ID:    NewID(),
		Title: ComprehensionTitle,
		Body: &model.Comprehension{
			Passage: ComprehensionPassage,
			Questions: []model.SubQuestion{{
				ID:            NewID(),
				Question:      SubQuestionPrompt,
				Type:          model.SubQuestionMultipleChoice,
				Options:       []string{"Option A", "Option B", "Option C"},
				CorrectAnswer: &answer,
			}},
		},
	}
}
