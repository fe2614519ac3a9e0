package model

import "time"

// Theme holds the visual tokens applied to a whole form.
type Theme struct {
	PrimaryColor      string  `json:"primary_color" binding:"required"`
	SecondaryColor    string  `json:"secondary_color" binding:"required"`
	AccentColor       string  `json:"accent_color" binding:"required"`
	BackgroundColor   string  `json:"background_color" binding:"required"`
	TextColor         string  `json:"text_color" binding:"required"`
	Font              string  `json:"font" binding:"required"`
	BackgroundPattern *string `json:"background_pattern,omitempty"`
	BackgroundImage   *string `json:"background_image,omitempty"`
}

// DefaultTheme returns the theme every new form starts with.
func DefaultTheme() Theme {
	return Theme{
		PrimaryColor:    "#3B82F6",
		SecondaryColor:  "#6366F1",
		AccentColor:     "#8B5CF6",
		BackgroundColor: "#F8FAFC",
		TextColor:       "#1E293B",
		Font:            "Inter",
	}
}

func (t Theme) clone() Theme {
	t.BackgroundPattern = cloneString(t.BackgroundPattern)
	t.BackgroundImage = cloneString(t.BackgroundImage)
	return t
}

// Form is the authored document: header, theme and ordered questions.
type Form struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	HeaderImage *string    `json:"header_image,omitempty"`
	Theme       Theme      `json:"theme"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a deep copy that shares no memory with f.
func (f Form) Clone() Form {
	out := f
	out.HeaderImage = cloneString(f.HeaderImage)
	out.Theme = f.Theme.clone()
	out.Questions = make([]Question, len(f.Questions))
	for i, q := range f.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// QuestionIndex returns the position of the question with the given id, or -1.
func (f *Form) QuestionIndex(id string) int {
	for i := range f.Questions {
		if f.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// Question looks up a question by id.
func (f *Form) Question(id string) (Question, bool) {
	if i := f.QuestionIndex(id); i >= 0 {
		return f.Questions[i], true
	}
	return Question{}, false
}

// FormSummary is the listing view of a saved form.
type FormSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summary builds the listing view of f.
func (f *Form) Summary() FormSummary {
	return FormSummary{
		ID:            f.ID,
		Title:         f.Title,
		QuestionCount: len(f.Questions),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// FormPatch is a shallow merge of top-level form fields. Nil fields are left untouched.
type FormPatch struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	HeaderImage *string `json:"header_image"`
	Theme       *Theme  `json:"theme" binding:"omitempty"`
}

// IsEmpty reports whether the patch carries no field.
func (p FormPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.HeaderImage == nil && p.Theme == nil
}

// Apply merges the patch into f. The theme is replaced wholesale.
func (p FormPatch) Apply(f *Form) {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.HeaderImage != nil {
		f.HeaderImage = cloneString(p.HeaderImage)
	}
	if p.Theme != nil {
		f.Theme = p.Theme.clone()
	}
}

// ThemePatch is a shallow merge into a form's theme.
type ThemePatch struct {
	PrimaryColor      *string `json:"primary_color"`
	SecondaryColor    *string `json:"secondary_color"`
	AccentColor       *string `json:"accent_color"`
	BackgroundColor   *string `json:"background_color"`
	TextColor         *string `json:"text_color"`
	Font              *string `json:"font"`
	BackgroundPattern *string `json:"background_pattern"`
	BackgroundImage   *string `json:"background_image"`
}

// Apply merges the patch into t.
func (p ThemePatch) Apply(t *Theme) {
	setString(&t.PrimaryColor, p.PrimaryColor)
	setString(&t.SecondaryColor, p.SecondaryColor)
	setString(&t.AccentColor, p.AccentColor)
	setString(&t.BackgroundColor, p.BackgroundColor)
	setString(&t.TextColor, p.TextColor)
	setString(&t.Font, p.Font)
	if p.BackgroundPattern != nil {
		t.BackgroundPattern = cloneString(p.BackgroundPattern)
	}
	if p.BackgroundImage != nil {
		t.BackgroundImage = cloneString(p.BackgroundImage)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
