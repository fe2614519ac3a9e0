package model

// AddQuestionRequest selects the palette default for a new question. A body
// carrying more than the type is decoded as a full Question instead.
type AddQuestionRequest struct {
	Type QuestionType `json:"type" binding:"required,question_type"`
}

// ReorderQuestionsRequest moves the question at From to index To.
type ReorderQuestionsRequest struct {
	From *int `json:"from" binding:"required,min=0"`
	To   *int `json:"to" binding:"required,min=0"`
}

// PreviewModeRequest switches an editing session between builder and respondent view.
type PreviewModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ListQuery is the pagination query shared by listing endpoints.
type ListQuery struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// StartResponseQuery opens a respondent session. Preview sessions fill the live draft.
type StartResponseQuery struct {
	Preview bool `form:"preview"`
}

// CategorizeAnswerRequest places an item. An empty category returns it to the pool.
type CategorizeAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Item       string `json:"item" binding:"required"`
	Category   string `json:"category"`
}

// ClozeAnswerRequest fills one blank.
type ClozeAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	BlankID    string `json:"blank_id" binding:"required"`
	Answer     string `json:"answer" binding:"max=1000"`
}

// ComprehensionAnswerRequest answers one sub-question.
type ComprehensionAnswerRequest struct {
	QuestionID    string `json:"question_id" binding:"required"`
	SubQuestionID string `json:"sub_question_id" binding:"required"`
	Answer        string `json:"answer" binding:"max=5000"`
}
