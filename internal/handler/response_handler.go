package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/collector"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/response"
	"github.com/stemsi/formcraft/internal/service"
	"github.com/stemsi/formcraft/internal/validator"
)

// ResponseHandler serves the respondent endpoints.
type ResponseHandler struct {
	respondent *service.RespondentService
	log        zerolog.Logger
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(respondent *service.RespondentService, log zerolog.Logger) *ResponseHandler {
	return &ResponseHandler{
		respondent: respondent,
		log:        log.With().Str("component", "response_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/forms/:id/responses?preview=true
func (h *ResponseHandler) Start(c *gin.Context) {
	var q model.StartResponseQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.respondent.Start(c.Request.Context(), c.Param("id"), q.Preview)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// Get godoc
// GET /api/v1/responses/:sid
func (h *ResponseHandler) Get(c *gin.Context) {
	h.reply(c)(h.respondent.View(c.Request.Context(), c.Param("sid")))
}

// Categorize godoc
// POST /api/v1/responses/:sid/categorize
func (h *ResponseHandler) Categorize(c *gin.Context) {
	var req model.CategorizeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.respondent.Categorize(c.Request.Context(), c.Param("sid"), req.QuestionID, req.Item, req.Category))
}

// Cloze godoc
// POST /api/v1/responses/:sid/cloze
func (h *ResponseHandler) Cloze(c *gin.Context) {
	var req model.ClozeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.respondent.FillBlank(c.Request.Context(), c.Param("sid"), req.QuestionID, req.BlankID, req.Answer))
}

// Comprehension godoc
// POST /api/v1/responses/:sid/comprehension
func (h *ResponseHandler) Comprehension(c *gin.Context) {
	var req model.ComprehensionAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.reply(c)(h.respondent.AnswerSubQuestion(c.Request.Context(), c.Param("sid"), req.QuestionID, req.SubQuestionID, req.Answer))
}

// Submit godoc
// POST /api/v1/responses/:sid/submit
func (h *ResponseHandler) Submit(c *gin.Context) {
	sub, err := h.respondent.Submit(c.Request.Context(), c.Param("sid"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

func (h *ResponseHandler) reply(c *gin.Context) func(*collector.View, error) {
	return func(v *collector.View, err error) {
		if err != nil {
			fail(c, h.log, err)
			return
		}
		response.Success(c, http.StatusOK, v)
	}
}
