package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownQuestionType is returned when decoding a question whose type tag is not recognised.
var ErrUnknownQuestionType = errors.New("unknown question type")

// QuestionType is the discriminator of the question union.
type QuestionType string

const (
	QuestionTypeCategorize    QuestionType = "categorize"
	QuestionTypeCloze         QuestionType = "cloze"
	QuestionTypeComprehension QuestionType = "comprehension"
)

// Valid reports whether t names one of the question variants.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeCategorize, QuestionTypeCloze, QuestionTypeComprehension:
		return true
	}
	return false
}

// QuestionStyle overrides the form theme for a single question.
type QuestionStyle struct {
	BackgroundColor *string `json:"background_color,omitempty"`
	TextColor       *string `json:"text_color,omitempty"`
	Font            *string `json:"font,omitempty"`
}

func (s *QuestionStyle) clone() *QuestionStyle {
	if s == nil {
		return nil
	}
	return &QuestionStyle{
		BackgroundColor: cloneString(s.BackgroundColor),
		TextColor:       cloneString(s.TextColor),
		Font:            cloneString(s.Font),
	}
}

// Question is one block of a form. The variant-specific fields live in Body.
type Question struct {
	ID           string
	Title        string
	Image        *string
	CustomStyles *QuestionStyle
	Body         QuestionBody
}

// QuestionBody is the closed set of question variants. Only *Categorize, *Cloze
// and *Comprehension implement it.
type QuestionBody interface {
	Type() QuestionType
	cloneBody() QuestionBody
}

// Type returns the variant tag of q, or "" when the body is missing.
func (q Question) Type() QuestionType {
	if q.Body == nil {
		return ""
	}
	return q.Body.Type()
}

// Clone returns a deep copy of q.
func (q Question) Clone() Question {
	out := q
	out.Image = cloneString(q.Image)
	out.CustomStyles = q.CustomStyles.clone()
	if q.Body != nil {
		out.Body = q.Body.cloneBody()
	}
	return out
}

// DispatchBody calls the handler matching the variant of b. Every variant has a
// positional handler, so a new variant cannot be added without revisiting callers.
func DispatchBody[T any](
	b QuestionBody,
	onCategorize func(*Categorize) T,
	onCloze func(*Cloze) T,
	onComprehension func(*Comprehension) T,
) T {
	switch v := b.(type) {
	case *Categorize:
		return onCategorize(v)
	case *Cloze:
		return onCloze(v)
	case *Comprehension:
		return onComprehension(v)
	}
	panic(fmt.Sprintf("model: unhandled question body %T", b))
}

// VisitBody is DispatchBody for handlers without a result.
func VisitBody(
	b QuestionBody,
	onCategorize func(*Categorize),
	onCloze func(*Cloze),
	onComprehension func(*Comprehension),
) {
	DispatchBody(b,
		func(v *Categorize) struct{} { onCategorize(v); return struct{}{} },
		func(v *Cloze) struct{} { onCloze(v); return struct{}{} },
		func(v *Comprehension) struct{} { onComprehension(v); return struct{}{} },
	)
}

// NewBody returns an empty body for the given variant.
func NewBody(t QuestionType) (QuestionBody, error) {
	switch t {
	case QuestionTypeCategorize:
		return &Categorize{}, nil
	case QuestionTypeCloze:
		return &Cloze{}, nil
	case QuestionTypeComprehension:
		return &Comprehension{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
}

// ─── Categorize ──────────────────────────────────────────────────────

// CategorizeItem is a draggable item. Category names an entry of the owning
// question's categories.
type CategorizeItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Categorize asks the respondent to sort items into categories.
type Categorize struct {
	Categories []string         `json:"categories"`
	Items      []CategorizeItem `json:"items"`
}

func (*Categorize) Type() QuestionType { return QuestionTypeCategorize }

func (c *Categorize) cloneBody() QuestionBody {
	out := &Categorize{Categories: cloneStrings(c.Categories)}
	if c.Items != nil {
		out.Items = make([]CategorizeItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

// HasCategory reports whether name is one of the current categories.
func (c *Categorize) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

// ─── Cloze ───────────────────────────────────────────────────────────

// ClozeBlank defines one fill-in slot. Position is advisory metadata; slots are
// matched to blank markers by index.
type ClozeBlank struct {
	ID            string `json:"id"`
	Position      int    `json:"position"`
	CorrectAnswer string `json:"correct_answer"`
}

// Cloze is a sentence template with ___ markers.
type Cloze struct {
	Sentence string       `json:"sentence"`
	Blanks   []ClozeBlank `json:"blanks"`
}

func (*Cloze) Type() QuestionType { return QuestionTypeCloze }

func (c *Cloze) cloneBody() QuestionBody {
	out := &Cloze{Sentence: c.Sentence}
	if c.Blanks != nil {
		out.Blanks = make([]ClozeBlank, len(c.Blanks))
		copy(out.Blanks, c.Blanks)
	}
	return out
}

// ─── Comprehension ───────────────────────────────────────────────────

// SubQuestionType is the answer mode of a comprehension sub-question.
type SubQuestionType string

const (
	SubQuestionMultipleChoice SubQuestionType = "multiple-choice"
	SubQuestionShortAnswer    SubQuestionType = "short-answer"
)

// SubQuestion is one question about a comprehension passage.
type SubQuestion struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Type          SubQuestionType `json:"type"`
	Options       []string        `json:"options,omitempty"`
	CorrectAnswer *string         `json:"correct_answer,omitempty"`
}

func (s SubQuestion) clone() SubQuestion {
	s.Options = cloneStrings(s.Options)
	s.CorrectAnswer = cloneString(s.CorrectAnswer)
	return s
}

// Comprehension is a passage followed by sub-questions.
type Comprehension struct {
	Passage   string        `json:"passage"`
	Questions []SubQuestion `json:"questions"`
}

func (*Comprehension) Type() QuestionType { return QuestionTypeComprehension }

func (c *Comprehension) cloneBody() QuestionBody {
	out := &Comprehension{Passage: c.Passage}
	if c.Questions != nil {
		out.Questions = make([]SubQuestion, len(c.Questions))
		for i, sq := range c.Questions {
			out.Questions[i] = sq.clone()
		}
	}
	return out
}

// ─── JSON ────────────────────────────────────────────────────────────

type questionHeader struct {
	ID           string         `json:"id"`
	Type         QuestionType   `json:"type"`
	Title        string         `json:"title"`
	Image        *string        `json:"image,omitempty"`
	CustomStyles *QuestionStyle `json:"custom_styles,omitempty"`
}

// MarshalJSON encodes the question as one flat object tagged by "type".
func (q Question) MarshalJSON() ([]byte, error) {
	if q.Body == nil {
		return nil, fmt.Errorf("question %s: missing body", q.ID)
	}
	head, err := json.Marshal(questionHeader{
		ID:           q.ID,
		Type:         q.Body.Type(),
		Title:        q.Title,
		Image:        q.Image,
		CustomStyles: q.CustomStyles,
	})
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(q.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) <= 2 {
		return head, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(head) + len(body))
	buf.Write(head[:len(head)-1])
	buf.WriteByte(',')
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat tagged question.
func (q *Question) UnmarshalJSON(data []byte) error {
	var head questionHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	body, err := NewBody(head.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, body); err != nil {
		return fmt.Errorf("decode %s question: %w", head.Type, err)
	}
	*q = Question{
		ID:           head.ID,
		Title:        head.Title,
		Image:        head.Image,
		CustomStyles: head.CustomStyles,
		Body:         body,
	}
	return nil
}
