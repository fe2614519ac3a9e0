package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidIndex   ErrCode = "INVALID_INDEX"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrFormNotFound    ErrCode = "FORM_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"

	// ─── Form editing ──────────────────────────────────────────────────
	ErrQuestionNotFound    ErrCode = "QUESTION_NOT_FOUND"
	ErrUnknownQuestionType ErrCode = "UNKNOWN_QUESTION_TYPE"
	ErrEditNotApplicable   ErrCode = "EDIT_NOT_APPLICABLE"
	ErrLastCategory        ErrCode = "LAST_CATEGORY"
	ErrMinimumOptions      ErrCode = "MINIMUM_OPTIONS"

	// ─── Respondent ────────────────────────────────────────────────────
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"
	ErrWrongQuestionType  ErrCode = "WRONG_QUESTION_TYPE"
	ErrUnknownItem        ErrCode = "UNKNOWN_ITEM"
	ErrUnknownCategory    ErrCode = "UNKNOWN_CATEGORY"
	ErrUnknownBlank       ErrCode = "UNKNOWN_BLANK"
	ErrUnknownSubQuestion ErrCode = "UNKNOWN_SUB_QUESTION"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidIndex:
		return "Index is outside the list."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrFormNotFound:
		return "Form not found."
	case ErrSessionNotFound:
		return "Session not found or expired."
	case ErrConflict:
		return "Resource already exists."

	// ─── Form editing ──────────────────────────────────────────────────
	case ErrQuestionNotFound:
		return "Question not found in this form."
	case ErrUnknownQuestionType:
		return "Unknown question type."
	case ErrEditNotApplicable:
		return "This edit does not apply to the question."
	case ErrLastCategory:
		return "A categorize question needs at least one category."
	case ErrMinimumOptions:
		return "A multiple-choice question needs at least two options."

	// ─── Respondent ────────────────────────────────────────────────────
	case ErrUnknownQuestion:
		return "The form has no such question."
	case ErrWrongQuestionType:
		return "The question does not accept this kind of answer."
	case ErrUnknownItem:
		return "The question has no such item."
	case ErrUnknownCategory:
		return "The question has no such category."
	case ErrUnknownBlank:
		return "The question has no such blank."
	case ErrUnknownSubQuestion:
		return "The question has no such sub-question."
	case ErrAlreadySubmitted:
		return "This response has already been submitted."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
