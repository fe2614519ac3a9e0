package palette

import (
	"errors"
	"fmt"

	"github.com/stemsi/formcraft/internal/model"
)

var (
	ErrUnknownEdit     = errors.New("unknown edit operation")
	ErrWrongVariant    = errors.New("edit does not apply to this question type")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrLastCategory    = errors.New("a categorize question keeps at least one category")
	ErrMinimumOptions  = errors.New("a multiple-choice sub-question keeps at least two options")
	ErrSubQuestionType = errors.New("unknown sub-question type")
)

// EditOp names a nested edit.
type EditOp string

const (
	OpAddCategory    EditOp = "add_category"
	OpRenameCategory EditOp = "rename_category"
	OpRemoveCategory EditOp = "remove_category"

	OpAddItem         EditOp = "add_item"
	OpSetItemText     EditOp = "set_item_text"
	OpSetItemCategory EditOp = "set_item_category"
	OpRemoveItem      EditOp = "remove_item"

	OpAddBlank       EditOp = "add_blank"
	OpSetBlankAnswer EditOp = "set_blank_answer"
	OpRemoveBlank    EditOp = "remove_blank"

	OpAddSubQuestion       EditOp = "add_sub_question"
	OpSetSubQuestionText   EditOp = "set_sub_question_text"
	OpSetSubQuestionType   EditOp = "set_sub_question_type"
	OpSetSubQuestionAnswer EditOp = "set_sub_question_answer"
	OpRemoveSubQuestion    EditOp = "remove_sub_question"
	OpAddOption            EditOp = "add_option"
	OpSetOption            EditOp = "set_option"
	OpRemoveOption         EditOp = "remove_option"
)

var opVariant = map[EditOp]model.QuestionType{
	OpAddCategory:    model.QuestionTypeCategorize,
	OpRenameCategory: model.QuestionTypeCategorize,
	OpRemoveCategory: model.QuestionTypeCategorize,

	OpAddItem:         model.QuestionTypeCategorize,
	OpSetItemText:     model.QuestionTypeCategorize,
	OpSetItemCategory: model.QuestionTypeCategorize,
	OpRemoveItem:      model.QuestionTypeCategorize,

	OpAddBlank:       model.QuestionTypeCloze,
	OpSetBlankAnswer: model.QuestionTypeCloze,
	OpRemoveBlank:    model.QuestionTypeCloze,

	OpAddSubQuestion:       model.QuestionTypeComprehension,
	OpSetSubQuestionText:   model.QuestionTypeComprehension,
	OpSetSubQuestionType:   model.QuestionTypeComprehension,
	OpSetSubQuestionAnswer: model.QuestionTypeComprehension,
	OpRemoveSubQuestion:    model.QuestionTypeComprehension,
	OpAddOption:            model.QuestionTypeComprehension,
	OpSetOption:            model.QuestionTypeComprehension,
	OpRemoveOption:         model.QuestionTypeComprehension,
}

// Edit is one nested change. Index addresses the category, item, blank or
// sub-question; OptionIndex addresses an option inside a sub-question.
type Edit struct {
	Op          EditOp `json:"op" binding:"required"`
	Index       int    `json:"index"`
	OptionIndex int    `json:"option_index"`
	Value       string `json:"value"`
}

// Apply computes the patch that performs e on q. q is not modified; the patch
// carries a full replacement of the nested list it touches.
func Apply(q model.Question, e Edit) (model.QuestionPatch, error) {
	variant, ok := opVariant[e.Op]
	if !ok {
		return model.QuestionPatch{}, fmt.Errorf("%w: %q", ErrUnknownEdit, e.Op)
	}
	if q.Type() != variant {
		return model.QuestionPatch{}, fmt.Errorf("%w: %s on %s", ErrWrongVariant, e.Op, q.Type())
	}

	type result struct {
		patch model.QuestionPatch
		err   error
	}
	r := model.DispatchBody(q.Body,
		func(c *model.Categorize) result { p, err := editCategorize(c, e); return result{p, err} },
		func(c *model.Cloze) result { p, err := editCloze(c, e); return result{p, err} },
		func(c *model.Comprehension) result { p, err := editComprehension(c, e); return result{p, err} },
	)
	return r.patch, r.err
}

func editCategorize(c *model.Categorize, e Edit) (model.QuestionPatch, error) {
	cats := append([]string{}, c.Categories...)
	items := append([]model.CategorizeItem{}, c.Items...)

	switch e.Op {
	case OpAddCategory:
		return model.QuestionPatch{Categories: append(cats, fmt.Sprintf("Category %d", len(cats)+1))}, nil
	case OpRenameCategory:
		if err := inRange(e.Index, len(cats)); err != nil {
			return model.QuestionPatch{}, err
		}
		// Items keep the old name and dangle until reassigned.
		cats[e.Index] = e.Value
		return model.QuestionPatch{Categories: cats}, nil
	case OpRemoveCategory:
		if err := inRange(e.Index, len(cats)); err != nil {
			return model.QuestionPatch{}, err
		}
		if len(cats) <= 1 {
			return model.QuestionPatch{}, ErrLastCategory
		}
		return model.QuestionPatch{Categories: removeAt(cats, e.Index)}, nil

	case OpAddItem:
		category := "Category 1"
		if len(cats) > 0 {
			category = cats[0]
		}
		item := model.CategorizeItem{ID: NewID(), Text: fmt.Sprintf("Item %d", len(items)+1), Category: category}
		return model.QuestionPatch{Items: append(items, item)}, nil
	case OpSetItemText, OpSetItemCategory:
		if err := inRange(e.Index, len(items)); err != nil {
			return model.QuestionPatch{}, err
		}
		if e.Op == OpSetItemText {
			items[e.Index].Text = e.Value
		} else {
			items[e.Index].Category = e.Value
		}
		return model.QuestionPatch{Items: items}, nil
	case OpRemoveItem:
		if err := inRange(e.Index, len(items)); err != nil {
			return model.QuestionPatch{}, err
		}
		return model.QuestionPatch{Items: removeAt(items, e.Index)}, nil
	}
	return model.QuestionPatch{}, fmt.Errorf("%w: %q", ErrUnknownEdit, e.Op)
}

func editCloze(c *model.Cloze, e Edit) (model.QuestionPatch, error) {
	blanks := append([]model.ClozeBlank{}, c.Blanks...)

	switch e.Op {
	case OpAddBlank:
		return model.QuestionPatch{Blanks: append(blanks, model.ClozeBlank{ID: NewID()})}, nil
	case OpSetBlankAnswer:
		if err := inRange(e.Index, len(blanks)); err != nil {
			return model.QuestionPatch{}, err
		}
		blanks[e.Index].CorrectAnswer = e.Value
		return model.QuestionPatch{Blanks: blanks}, nil
	case OpRemoveBlank:
		if err := inRange(e.Index, len(blanks)); err != nil {
			return model.QuestionPatch{}, err
		}
		return model.QuestionPatch{Blanks: removeAt(blanks, e.Index)}, nil
	}
	return model.QuestionPatch{}, fmt.Errorf("%w: %q", ErrUnknownEdit, e.Op)
}

func editComprehension(c *model.Comprehension, e Edit) (model.QuestionPatch, error) {
	subs := make([]model.SubQuestion, len(c.Questions))
	for i, sq := range c.Questions {
		sq.Options = append([]string(nil), sq.Options...)
		subs[i] = sq
	}

	if e.Op == OpAddSubQuestion {
		answer := "Option 1"
		sq := model.SubQuestion{
			ID:            NewID(),
			Type:          model.SubQuestionMultipleChoice,
			Options:       []string{"Option 1", "Option 2"},
			CorrectAnswer: &answer,
		}
		return model.QuestionPatch{Questions: append(subs, sq)}, nil
	}

	if err := inRange(e.Index, len(subs)); err != nil {
		return model.QuestionPatch{}, err
	}
	sq := &subs[e.Index]

	switch e.Op {
	case OpSetSubQuestionText:
		sq.Question = e.Value
	case OpSetSubQuestionType:
		t := model.SubQuestionType(e.Value)
		switch t {
		case model.SubQuestionShortAnswer:
		case model.SubQuestionMultipleChoice:
			if len(sq.Options) < 2 {
				sq.Options = []string{"Option 1", "Option 2"}
			}
		default:
			return model.QuestionPatch{}, fmt.Errorf("%w: %q", ErrSubQuestionType, e.Value)
		}
		sq.Type = t
	case OpSetSubQuestionAnswer:
		v := e.Value
		sq.CorrectAnswer = &v
	case OpRemoveSubQuestion:
		return model.QuestionPatch{Questions: removeAt(subs, e.Index)}, nil
	case OpAddOption:
		sq.Options = append(sq.Options, fmt.Sprintf("Option %d", len(sq.Options)+1))
	case OpSetOption:
		if err := inRange(e.OptionIndex, len(sq.Options)); err != nil {
			return model.QuestionPatch{}, err
		}
		sq.Options[e.OptionIndex] = e.Value
	case OpRemoveOption:
		if err := inRange(e.OptionIndex, len(sq.Options)); err != nil {
			return model.QuestionPatch{}, err
		}
		if len(sq.Options) <= 2 {
			return model.QuestionPatch{}, ErrMinimumOptions
		}
		sq.Options = removeAt(sq.Options, e.OptionIndex)
	default:
		return model.QuestionPatch{}, fmt.Errorf("%w: %q", ErrUnknownEdit, e.Op)
	}
	return model.QuestionPatch{Questions: subs}, nil
}

func inRange(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, n)
	}
	return nil
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
