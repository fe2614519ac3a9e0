package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/categorize"
	"github.com/stemsi/formcraft/internal/cloze"
	"github.com/stemsi/formcraft/internal/collector"
	"github.com/stemsi/formcraft/internal/comprehension"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/palette"
	"github.com/stemsi/formcraft/internal/response"
	"github.com/stemsi/formcraft/internal/service"
)

type errMapping struct {
	target error
	status int
	code   response.ErrCode
}

// errTable maps domain sentinels to API errors. First match wins.
var errTable = []errMapping{
	{service.ErrFormNotFound, http.StatusNotFound, response.ErrFormNotFound},
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
	{service.ErrDuplicateQuestion, http.StatusConflict, response.ErrConflict},
	{service.ErrInvalidIndex, http.StatusBadRequest, response.ErrInvalidIndex},
	{model.ErrUnknownQuestionType, http.StatusBadRequest, response.ErrUnknownQuestionType},

	{palette.ErrUnknownEdit, http.StatusBadRequest, response.ErrEditNotApplicable},
	{palette.ErrWrongVariant, http.StatusBadRequest, response.ErrEditNotApplicable},
	{palette.ErrSubQuestionType, http.StatusBadRequest, response.ErrValidation},
	{palette.ErrIndexOutOfRange, http.StatusBadRequest, response.ErrInvalidIndex},
	{palette.ErrLastCategory, http.StatusUnprocessableEntity, response.ErrLastCategory},
	{palette.ErrMinimumOptions, http.StatusUnprocessableEntity, response.ErrMinimumOptions},

	{collector.ErrUnknownQuestion, http.StatusNotFound, response.ErrUnknownQuestion},
	{collector.ErrWrongQuestionType, http.StatusBadRequest, response.ErrWrongQuestionType},
	{collector.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{categorize.ErrUnknownItem, http.StatusBadRequest, response.ErrUnknownItem},
	{categorize.ErrUnknownCategory, http.StatusBadRequest, response.ErrUnknownCategory},
	{cloze.ErrUnknownBlank, http.StatusBadRequest, response.ErrUnknownBlank},
	{comprehension.ErrUnknownSubQuestion, http.StatusBadRequest, response.ErrUnknownSubQuestion},

	{service.ErrUnsupportedFileType, http.StatusBadRequest, response.ErrUnsupportedFile},
	{service.ErrFileTooLarge, http.StatusBadRequest, response.ErrFileTooLarge},
}

// lookupError returns the status and code for err, falling back to 500.
func lookupError(err error) (int, response.ErrCode) {
	for _, m := range errTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the API error for err. Unmapped errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := lookupError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", response.RequestID(c)).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
