// Package comprehension collects answers to the sub-questions of a reading
// comprehension question.
package comprehension

import (
	"errors"
	"fmt"

	"github.com/stemsi/formcraft/internal/model"
)

var ErrUnknownSubQuestion = errors.New("unknown sub-question")

// EmitFunc receives the full answer mapping after every change.
type EmitFunc func(questionID string, answer model.ComprehensionAnswer)

// Sheet holds one respondent's answers for a comprehension question. Each answer
// replaces exactly one sub-question entry. Not safe for concurrent use.
type Sheet struct {
	questionID string
	subs       map[string]model.SubQuestion
	total      int
	answers    model.ComprehensionAnswer
	emit       EmitFunc
}

// NewSheet creates an empty sheet for q.
func NewSheet(questionID string, q *model.Comprehension, emit EmitFunc) *Sheet {
	if emit == nil {
		emit = func(string, model.ComprehensionAnswer) {}
	}
	s := &Sheet{
		questionID: questionID,
		subs:       make(map[string]model.SubQuestion, len(q.Questions)),
		total:      len(q.Questions),
		answers:    model.ComprehensionAnswer{},
		emit:       emit,
	}
	for _, sq := range q.Questions {
		s.subs[sq.ID] = sq
	}
	return s
}

// Answer records the answer to one sub-question: the selected option text for
// multiple choice, free text otherwise. Answers are stored as given, never graded.
func (s *Sheet) Answer(subQuestionID, answer string) error {
	if _, ok := s.subs[subQuestionID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubQuestion, subQuestionID)
	}
	s.answers[subQuestionID] = answer
	s.emit(s.questionID, s.Answers())
	return nil
}

// Answers returns a copy of the current answers.
func (s *Sheet) Answers() model.ComprehensionAnswer {
	return s.answers.CloneAnswer().(model.ComprehensionAnswer)
}

// Progress counts answered sub-questions against all sub-questions.
func (s *Sheet) Progress() model.Progress {
	return model.Progress{Answered: len(s.answers), Total: s.total}
}

// Restore replaces the answers with a cached copy, dropping unknown ids.
func (s *Sheet) Restore(answer model.ComprehensionAnswer) {
	s.answers = model.ComprehensionAnswer{}
	for id, v := range answer {
		if _, ok := s.subs[id]; ok {
			s.answers[id] = v
		}
	}
}
