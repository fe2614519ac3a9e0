package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/collector"
	"github.com/stemsi/formcraft/internal/response"
	"github.com/stemsi/formcraft/internal/service"
	ws "github.com/stemsi/formcraft/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the builder snapshot stream and the respondent action socket.
type WSHandler struct {
	editor     *service.EditorService
	respondent *service.RespondentService
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(editor *service.EditorService, respondent *service.RespondentService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		editor:     editor,
		respondent: respondent,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// FormStream godoc
// WS /ws/v1/forms/:id/stream
// Pushes the form state after every applied change of an editing session.
func (h *WSHandler) FormStream(c *gin.Context) {
	formID := c.Param("id")

	// Subscribing before taking the snapshot means no change can fall between them.
	// Listeners run on the mutating goroutine, so they only hand the state over.
	updates := make(chan service.FormState, 1)
	unsubscribe, sessionDone, err := h.editor.Subscribe(formID, func(st service.FormState) {
		offerLatest(updates, st)
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer unsubscribe()

	initial, err := h.editor.Snapshot(formID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("form_id", formID).Logger()

	// The builder never sends anything; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if ws.IsUnexpectedClose(err) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
		}
	}()

	wsLog.Info().Msg("Builder connected")
	if err := ws.WriteTyped(conn, formEvent(*initial)); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Builder disconnected")
			return
		case <-sessionDone:
			wsLog.Info().Msg("Editing session closed, ending stream")
			ws.WriteTyped(conn, ws.ClosedResponse{Event: ws.EventClosed, FormID: formID})
			ws.WriteClose(conn, "session closed")
			return
		case st := <-updates:
			if err := ws.WriteTyped(conn, formEvent(st)); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		}
	}
}

// ResponseStream godoc
// WS /ws/v1/responses/:sid/stream
// Accepts respondent actions and answers each with the new session state.
func (h *WSHandler) ResponseStream(c *gin.Context) {
	sessionID := c.Param("sid")
	ctx := c.Request.Context()

	view, err := h.respondent.View(ctx, sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Info().Msg("Respondent connected")

	if err := ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: view}); err != nil {
		return
	}

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if ws.IsUnexpectedClose(err) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := h.handleAction(ctx, conn, sessionID, &msg); err != nil {
			code := lookupCode(err)
			if code == response.ErrInternal {
				wsLog.Error().Err(err).Str("action", string(msg.Action)).Msg("Action failed")
			}
			ws.WriteError(conn, string(code), response.GetMessage(code))
		}
	}
}

// handleAction runs one respondent action and writes its reply. Returned errors
// are reported to the client by the caller.
func (h *WSHandler) handleAction(ctx context.Context, conn *websocket.Conn, sessionID string, msg *ws.RequestPayload) error {
	var (
		view *collector.View
		err  error
	)

	switch msg.Action {
	case ws.ActionPing:
		return ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
	case ws.ActionAssign:
		if msg.QuestionID == "" || msg.Item == "" || msg.Category == "" {
			return ws.WriteError(conn, string(response.ErrValidation), "question_id, item and category are required")
		}
		view, err = h.respondent.Categorize(ctx, sessionID, msg.QuestionID, msg.Item, msg.Category)
	case ws.ActionUnassign:
		view, err = h.respondent.Categorize(ctx, sessionID, msg.QuestionID, msg.Item, "")
	case ws.ActionFill:
		view, err = h.respondent.FillBlank(ctx, sessionID, msg.QuestionID, msg.BlankID, msg.Answer)
	case ws.ActionAnswer:
		view, err = h.respondent.AnswerSubQuestion(ctx, sessionID, msg.QuestionID, msg.SubQuestionID, msg.Answer)
	case ws.ActionSubmit:
		sub, err := h.respondent.Submit(ctx, sessionID)
		if err != nil {
			return err
		}
		return ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Submission: sub})
	default:
		return ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}

	if err != nil {
		return err
	}
	return ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: view})
}

func formEvent(st service.FormState) ws.FormResponse {
	return ws.FormResponse{
		Event:       ws.EventForm,
		Form:        st.Form,
		PreviewMode: st.PreviewMode,
		Issues:      st.Issues,
	}
}

func lookupCode(err error) response.ErrCode {
	_, code := lookupError(err)
	return code
}

// offerLatest puts v in a one-slot channel, replacing a value nobody has read yet.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
