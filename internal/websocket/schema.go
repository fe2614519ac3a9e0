package websocket

import (
	"github.com/stemsi/formcraft/internal/collector"
	"github.com/stemsi/formcraft/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAssign   Action = "assign"
	ActionUnassign Action = "unassign"
	ActionFill     Action = "fill"
	ActionAnswer   Action = "answer"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every respondent action. Fields not used by an
// action are ignored.
type RequestPayload struct {
	Action        Action `json:"action"`
	QuestionID    string `json:"question_id,omitempty"`
	Item          string `json:"item,omitempty"`
	Category      string `json:"category,omitempty"`
	BlankID       string `json:"blank_id,omitempty"`
	SubQuestionID string `json:"sub_question_id,omitempty"`
	Answer        string `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventForm      Event = "form"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
	EventClosed    Event = "closed"
)

// StateResponse is sent after every accepted respondent action.
type StateResponse struct {
	Event Event           `json:"event"`
	State *collector.View `json:"state"`
}

// FormResponse streams builder snapshots.
type FormResponse struct {
	Event       Event         `json:"event"`
	Form        model.Form    `json:"form"`
	PreviewMode bool          `json:"preview_mode"`
	Issues      []model.Issue `json:"issues"`
}

type SubmittedResponse struct {
	Event      Event             `json:"event"`
	Submission *model.Submission `json:"submission"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// ClosedResponse is the last message of a builder stream whose editing
// session has ended.
type ClosedResponse struct {
	Event  Event  `json:"event"`
	FormID string `json:"form_id"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
