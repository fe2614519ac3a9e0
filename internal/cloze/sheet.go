package cloze

import (
	"errors"
	"fmt"

	"github.com/stemsi/formcraft/internal/model"
)

var ErrUnknownBlank = errors.New("unknown blank")

// EmitFunc receives the merged blank answers after every fill.
type EmitFunc func(questionID string, answer model.ClozeAnswer)

// Sheet collects one respondent's answers for a cloze question. Filling one
// blank never touches the answer of another. Not safe for concurrent use.
type Sheet struct {
	questionID string
	blanks     []model.ClozeBlank
	known      map[string]bool
	answers    model.ClozeAnswer
	emit       EmitFunc
}

// NewSheet creates an empty sheet. Every defined blank can be filled, inert
// ones included.
func NewSheet(questionID string, q *model.Cloze, emit EmitFunc) *Sheet {
	if emit == nil {
		emit = func(string, model.ClozeAnswer) {}
	}
	s := &Sheet{
		questionID: questionID,
		blanks:     make([]model.ClozeBlank, len(q.Blanks)),
		known:      make(map[string]bool, len(q.Blanks)),
		answers:    model.ClozeAnswer{},
		emit:       emit,
	}
	copy(s.blanks, q.Blanks)
	for _, b := range q.Blanks {
		s.known[b.ID] = true
	}
	return s
}

// Fill stores answer for blankID and emits the merged answers.
func (s *Sheet) Fill(blankID, answer string) error {
	if !s.known[blankID] {
		return fmt.Errorf("%w: %q", ErrUnknownBlank, blankID)
	}
	s.answers[blankID] = answer
	s.emit(s.questionID, s.Answers())
	return nil
}

// Answers returns a copy of the current answers.
func (s *Sheet) Answers() model.ClozeAnswer {
	return s.answers.CloneAnswer().(model.ClozeAnswer)
}

// Progress counts filled blanks against defined blanks.
func (s *Sheet) Progress() model.Progress {
	return model.Progress{Answered: len(s.answers), Total: len(s.blanks)}
}

// Restore replaces the answers with a cached copy, dropping unknown blank ids.
func (s *Sheet) Restore(answer model.ClozeAnswer) {
	s.answers = model.ClozeAnswer{}
	for id, v := range answer {
		if s.known[id] {
			s.answers[id] = v
		}
	}
}
