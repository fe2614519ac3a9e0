package model

// QuestionPatch is a shallow merge into one question. Common fields apply to every
// variant; variant fields apply only when they belong to the target's variant and
// are ignored otherwise. A nil slice or pointer means "not present"; send an empty
// slice to clear a list.
type QuestionPatch struct {
	Title        *string        `json:"title" binding:"omitempty,max=500"`
	Image        *string        `json:"image"`
	CustomStyles *QuestionStyle `json:"custom_styles"`

	Categories []string         `json:"categories"`
	Items      []CategorizeItem `json:"items"`

	Sentence *string      `json:"sentence"`
	Blanks   []ClozeBlank `json:"blanks"`

	Passage   *string       `json:"passage"`
	Questions []SubQuestion `json:"questions"`
}

// IsEmpty reports whether the patch carries no field at all.
func (p QuestionPatch) IsEmpty() bool {
	return p.Title == nil && p.Image == nil && p.CustomStyles == nil &&
		p.Categories == nil && p.Items == nil &&
		p.Sentence == nil && p.Blanks == nil &&
		p.Passage == nil && p.Questions == nil
}

// Apply merges the patch into q, copying every slice it stores. The id and the
// variant of q never change.
func (p QuestionPatch) Apply(q *Question) {
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Image != nil {
		q.Image = cloneString(p.Image)
	}
	if p.CustomStyles != nil {
		q.CustomStyles = p.CustomStyles.clone()
	}
	if q.Body == nil {
		return
	}

	VisitBody(q.Body,
		func(c *Categorize) {
			if p.Categories != nil {
				c.Categories = cloneStrings(p.Categories)
			}
			if p.Items != nil {
				c.Items = make([]CategorizeItem, len(p.Items))
				copy(c.Items, p.Items)
			}
		},
		func(c *Cloze) {
			if p.Sentence != nil {
				c.Sentence = *p.Sentence
			}
			if p.Blanks != nil {
				c.Blanks = make([]ClozeBlank, len(p.Blanks))
				copy(c.Blanks, p.Blanks)
			}
		},
		func(c *Comprehension) {
			if p.Passage != nil {
				c.Passage = *p.Passage
			}
			if p.Questions != nil {
				c.Questions = make([]SubQuestion, len(p.Questions))
				for i, sq := range p.Questions {
					c.Questions[i] = sq.clone()
				}
			}
		},
	)
}
