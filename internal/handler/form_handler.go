package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/palette"
	"github.com/stemsi/formcraft/internal/response"
	"github.com/stemsi/formcraft/internal/service"
	"github.com/stemsi/formcraft/internal/validator"
)

// FormHandler serves the builder endpoints. Every mutating call returns the
// whole form state so the client can re-render from it.
type FormHandler struct {
	editor     *service.EditorService
	respondent *service.RespondentService
	log        zerolog.Logger
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(editor *service.EditorService, respondent *service.RespondentService, log zerolog.Logger) *FormHandler {
	return &FormHandler{
		editor:     editor,
		respondent: respondent,
		log:        log.With().Str("component", "form_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/forms
func (h *FormHandler) List(c *gin.Context) {
	var q model.ListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	forms, total, err := h.editor.List(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if forms == nil {
		forms = []model.FormSummary{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"forms": forms}, response.NewPagination(q.Page, q.PerPage, total))
}

// Create godoc
// POST /api/v1/forms
func (h *FormHandler) Create(c *gin.Context) {
	st, err := h.editor.Create(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, st)
}

// Import godoc
// POST /api/v1/forms/import
// Opens a session on a complete document supplied by the client.
func (h *FormHandler) Import(c *gin.Context) {
	var f model.Form
	if fields := validator.Bind(c, &f); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.editor.Import(c.Request.Context(), f)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, st)
}

// Open godoc
// POST /api/v1/forms/:id/open
func (h *FormHandler) Open(c *gin.Context) {
	st, err := h.editor.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// Get godoc
// GET /api/v1/forms/:id
func (h *FormHandler) Get(c *gin.Context) {
	st, err := h.editor.Snapshot(c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// Update godoc
// PATCH /api/v1/forms/:id
func (h *FormHandler) Update(c *gin.Context) {
	var patch model.FormPatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.UpdateForm(c.Param("id"), patch))
}

// UpdateTheme godoc
// PATCH /api/v1/forms/:id/theme
func (h *FormHandler) UpdateTheme(c *gin.Context) {
	var patch model.ThemePatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.UpdateTheme(c.Param("id"), patch))
}

// AddQuestion godoc
// POST /api/v1/forms/:id/questions
// A body of {"type": ...} appends the default question of that type; a full
// question object is appended as given.
func (h *FormHandler) AddQuestion(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, map[string]string{"detail": err.Error()})
		return
	}

	if len(keys) <= 1 {
		var req model.AddQuestionRequest
		if err := binding.JSON.BindBody(raw, &req); err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
			return
		}
		h.replyCreated(c)(h.editor.AddDefaultQuestion(c.Param("id"), req.Type))
		return
	}

	var q model.Question
	if err := binding.JSON.BindBody(raw, &q); err != nil {
		if status, code := lookupError(err); status != http.StatusInternalServerError {
			response.Fail(c, status, code)
			return
		}
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}
	h.replyCreated(c)(h.editor.AddQuestion(c.Param("id"), q))
}

// UpdateQuestion godoc
// PATCH /api/v1/forms/:id/questions/:qid
func (h *FormHandler) UpdateQuestion(c *gin.Context) {
	var patch model.QuestionPatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.UpdateQuestion(c.Param("id"), c.Param("qid"), patch))
}

// EditQuestion godoc
// POST /api/v1/forms/:id/questions/:qid/edits
// Applies one nested edit such as adding a category or removing an option.
func (h *FormHandler) EditQuestion(c *gin.Context) {
	var edit palette.Edit
	if fields := validator.Bind(c, &edit); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.EditQuestion(c.Param("id"), c.Param("qid"), edit))
}

// DeleteQuestion godoc
// DELETE /api/v1/forms/:id/questions/:qid
func (h *FormHandler) DeleteQuestion(c *gin.Context) {
	h.reply(c)(h.editor.DeleteQuestion(c.Param("id"), c.Param("qid")))
}

// ReorderQuestions godoc
// POST /api/v1/forms/:id/questions/reorder
func (h *FormHandler) ReorderQuestions(c *gin.Context) {
	var req model.ReorderQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.ReorderQuestions(c.Param("id"), *req.From, *req.To))
}

// SetPreviewMode godoc
// PUT /api/v1/forms/:id/preview
func (h *FormHandler) SetPreviewMode(c *gin.Context) {
	var req model.PreviewModeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.editor.SetPreviewMode(c.Param("id"), *req.Enabled))
}

// Save godoc
// POST /api/v1/forms/:id/save
func (h *FormHandler) Save(c *gin.Context) {
	h.reply(c)(h.editor.Save(c.Request.Context(), c.Param("id")))
}

// CloseSession godoc
// DELETE /api/v1/forms/:id/session
func (h *FormHandler) CloseSession(c *gin.Context) {
	if err := h.editor.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "editing session closed"})
}

// ListSubmissions godoc
// GET /api/v1/forms/:id/submissions
func (h *FormHandler) ListSubmissions(c *gin.Context) {
	var q model.ListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	subs, total, err := h.respondent.ListSubmissions(c.Request.Context(), c.Param("id"), q.Page, q.PerPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": subs}, response.NewPagination(q.Page, q.PerPage, total))
}

func (h *FormHandler) reply(c *gin.Context) func(*service.FormState, error) {
	return h.replyWith(c, http.StatusOK)
}

func (h *FormHandler) replyCreated(c *gin.Context) func(*service.FormState, error) {
	return h.replyWith(c, http.StatusCreated)
}

func (h *FormHandler) replyWith(c *gin.Context, status int) func(*service.FormState, error) {
	return func(st *service.FormState, err error) {
		if err != nil {
			fail(c, h.log, err)
			return
		}
		response.Success(c, status, st)
	}
}
