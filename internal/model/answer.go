package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Answer is a respondent's answer to one question. Its concrete type always
// matches the question's variant.
type Answer interface {
	QuestionType() QuestionType
	// Entries is the number of answered slots (assigned buckets, blanks, sub-questions).
	Entries() int
	CloneAnswer() Answer
}

// CategorizeAnswer maps category name to the item texts placed in it.
// The unassigned pool is never part of the answer.
type CategorizeAnswer map[string][]string

func (CategorizeAnswer) QuestionType() QuestionType { return QuestionTypeCategorize }

func (a CategorizeAnswer) Entries() int {
	n := 0
	for _, items := range a {
		n += len(items)
	}
	return n
}

func (a CategorizeAnswer) CloneAnswer() Answer {
	out := make(CategorizeAnswer, len(a))
	for k, v := range a {
		items := make([]string, len(v))
		copy(items, v)
		out[k] = items
	}
	return out
}

// ClozeAnswer maps blank id to the typed answer.
type ClozeAnswer map[string]string

func (ClozeAnswer) QuestionType() QuestionType { return QuestionTypeCloze }
func (a ClozeAnswer) Entries() int             { return len(a) }

func (a ClozeAnswer) CloneAnswer() Answer {
	out := make(ClozeAnswer, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ComprehensionAnswer maps sub-question id to the selected option text or free text.
type ComprehensionAnswer map[string]string

func (ComprehensionAnswer) QuestionType() QuestionType { return QuestionTypeComprehension }
func (a ComprehensionAnswer) Entries() int             { return len(a) }

func (a ComprehensionAnswer) CloneAnswer() Answer {
	out := make(ComprehensionAnswer, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// DecodeAnswer decodes raw into the answer type of the given variant.
func DecodeAnswer(t QuestionType, raw []byte) (Answer, error) {
	var (
		answer Answer
		err    error
	)
	switch t {
	case QuestionTypeCategorize:
		var a CategorizeAnswer
		err = json.Unmarshal(raw, &a)
		answer = a
	case QuestionTypeCloze:
		var a ClozeAnswer
		err = json.Unmarshal(raw, &a)
		answer = a
	case QuestionTypeComprehension:
		var a ComprehensionAnswer
		err = json.Unmarshal(raw, &a)
		answer = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s answer: %w", t, err)
	}
	return answer, nil
}

// TypedAnswer is the wire form of one response entry.
type TypedAnswer struct {
	QuestionID string          `json:"question_id"`
	Type       QuestionType    `json:"type"`
	Answer     json.RawMessage `json:"answer"`
}

// EncodeAnswer wraps an answer with its type tag.
func EncodeAnswer(questionID string, a Answer) (TypedAnswer, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return TypedAnswer{}, err
	}
	return TypedAnswer{QuestionID: questionID, Type: a.QuestionType(), Answer: raw}, nil
}

// Decode unwraps the typed answer.
func (t TypedAnswer) Decode() (Answer, error) {
	return DecodeAnswer(t.Type, t.Answer)
}

// ResponseSet maps question id to the respondent's answer.
type ResponseSet map[string]Answer

// Clone returns a deep copy of r.
func (r ResponseSet) Clone() ResponseSet {
	out := make(ResponseSet, len(r))
	for id, a := range r {
		out[id] = a.CloneAnswer()
	}
	return out
}

// MarshalJSON writes each entry together with its type tag.
func (r ResponseSet) MarshalJSON() ([]byte, error) {
	wire := make(map[string]TypedAnswer, len(r))
	for id, a := range r {
		t, err := EncodeAnswer(id, a)
		if err != nil {
			return nil, err
		}
		wire[id] = t
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads entries written by MarshalJSON.
func (r *ResponseSet) UnmarshalJSON(data []byte) error {
	var wire map[string]TypedAnswer
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(ResponseSet, len(wire))
	for id, t := range wire {
		a, err := t.Decode()
		if err != nil {
			return fmt.Errorf("response %s: %w", id, err)
		}
		out[id] = a
	}
	*r = out
	return nil
}

// Submission is what a respondent session hands to the submission sink.
type Submission struct {
	ID          string      `json:"id"`
	FormID      string      `json:"form_id"`
	SessionID   string      `json:"session_id"`
	Responses   ResponseSet `json:"responses"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Progress is a completion counter used for display only.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Percent returns the completion percentage, 0 when there is nothing to answer.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Answered) / float64(p.Total) * 100
}
