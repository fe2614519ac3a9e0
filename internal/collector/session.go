// Package collector accumulates one respondent's answers while a form is being
// filled out, and hands them to a sink on submit.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/categorize"
	"github.com/stemsi/formcraft/internal/cloze"
	"github.com/stemsi/formcraft/internal/comprehension"
	"github.com/stemsi/formcraft/internal/model"
)

var (
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrWrongQuestionType = errors.New("question does not accept this kind of answer")
	ErrAlreadySubmitted  = errors.New("response already submitted")
)

// AnswerHook is called after every accepted answer with the question's full answer.
type AnswerHook func(sessionID, questionID string, answer model.Answer)

// Option configures a Session.
type Option func(*Session)

// WithSessionID sets the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithClock replaces time.Now for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithAnswerHook installs a hook that sees every accepted answer.
func WithAnswerHook(h AnswerHook) Option {
	return func(s *Session) { s.onAnswer = h }
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID   string                  `json:"session_id"`
	FormID      string                  `json:"form_id"`
	Responses   model.ResponseSet       `json:"responses"`
	Progress    model.Progress          `json:"progress"`
	Questions   map[string]QuestionView `json:"questions"`
	Submitted   bool                    `json:"submitted"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`
}

// QuestionView is the per-widget state of one question.
type QuestionView struct {
	Progress   model.Progress `json:"progress"`
	Unassigned []string       `json:"unassigned,omitempty"`
}

// Session is one fill-out pass over a snapshot of a form. It never writes back
// to the form.
type Session struct {
	mu          sync.Mutex
	id          string
	form        model.Form
	boards      map[string]*categorize.Board
	clozes      map[string]*cloze.Sheet
	sheets      map[string]*comprehension.Sheet
	responses   model.ResponseSet
	submitted   bool
	submittedAt time.Time

	sink     Sink
	now      func() time.Time
	log      zerolog.Logger
	onAnswer AnswerHook

	// seq numbers accepted answers. hookMu serialises hook calls and reported
	// holds the last seq handed to the hook per question, so a slow call can
	// never overwrite a newer answer.
	seq      uint64
	hookMu   sync.Mutex
	reported map[string]uint64
}

// NewSession builds one answer engine per question of form. A nil sink discards
// submissions.
func NewSession(form model.Form, sink Sink, opts ...Option) *Session {
	s := &Session{
		form:      form.Clone(),
		boards:    make(map[string]*categorize.Board),
		clozes:    make(map[string]*cloze.Sheet),
		sheets:    make(map[string]*comprehension.Sheet),
		responses: model.ResponseSet{},
		sink:      sink,
		now:       time.Now,
		log:       zerolog.Nop(),
		onAnswer:  func(string, string, model.Answer) {},
		reported:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(context.Context, model.Submission) error { return nil })
	}
	s.log = s.log.With().Str("component", "response_session").Str("session_id", s.id).Logger()

	for _, q := range s.form.Questions {
		if q.Body == nil {
			continue
		}
		model.VisitBody(q.Body,
			func(c *model.Categorize) {
				s.boards[q.ID] = categorize.NewBoard(q.ID, c, func(qid string, a model.CategorizeAnswer) {
					s.responses[qid] = a
				})
			},
			func(c *model.Cloze) {
				s.clozes[q.ID] = cloze.NewSheet(q.ID, c, func(qid string, a model.ClozeAnswer) {
					s.responses[qid] = a
				})
			},
			func(c *model.Comprehension) {
				s.sheets[q.ID] = comprehension.NewSheet(q.ID, c, func(qid string, a model.ComprehensionAnswer) {
					s.responses[qid] = a
				})
			},
		)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// FormID returns the id of the form being filled out.
func (s *Session) FormID() string { return s.form.ID }

// Form returns a copy of the form snapshot the session was built from.
func (s *Session) Form() model.Form { return s.form.Clone() }

// Assign places an item of a categorize question into a category.
func (s *Session) Assign(questionID, item, category string) error {
	return s.answer(questionID, func() error {
		b, err := lookup(s, s.boards, questionID)
		if err != nil {
			return err
		}
		return b.Assign(item, category)
	})
}

// Unassign returns an item of a categorize question to the pool.
func (s *Session) Unassign(questionID, item string) error {
	return s.answer(questionID, func() error {
		b, err := lookup(s, s.boards, questionID)
		if err != nil {
			return err
		}
		return b.Unassign(item)
	})
}

// FillBlank stores the answer to one blank of a cloze question.
func (s *Session) FillBlank(questionID, blankID, answer string) error {
	return s.answer(questionID, func() error {
		sh, err := lookup(s, s.clozes, questionID)
		if err != nil {
			return err
		}
		return sh.Fill(blankID, answer)
	})
}

// AnswerSubQuestion stores the answer to one comprehension sub-question.
func (s *Session) AnswerSubQuestion(questionID, subQuestionID, answer string) error {
	return s.answer(questionID, func() error {
		sh, err := lookup(s, s.sheets, questionID)
		if err != nil {
			return err
		}
		return sh.Answer(subQuestionID, answer)
	})
}

// Progress counts questions with at least one answer entry. It is display only
// and never blocks Submit.
func (s *Session) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// Responses returns a copy of the answers collected so far.
func (s *Session) Responses() model.ResponseSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses.Clone()
}

// Submitted reports whether Submit has been called.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// View returns a snapshot of the whole session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID: s.id,
		FormID:    s.form.ID,
		Responses: s.responses.Clone(),
		Progress:  s.progressLocked(),
		Questions: make(map[string]QuestionView, len(s.form.Questions)),
		Submitted: s.submitted,
	}
	if s.submitted {
		at := s.submittedAt
		v.SubmittedAt = &at
	}
	for id, b := range s.boards {
		v.Questions[id] = QuestionView{Progress: b.Progress(), Unassigned: b.Unassigned()}
	}
	for id, sh := range s.clozes {
		v.Questions[id] = QuestionView{Progress: sh.Progress()}
	}
	for id, sh := range s.sheets {
		v.Questions[id] = QuestionView{Progress: sh.Progress()}
	}
	return v
}

// Submit marks the session submitted and hands the answers to the sink. The flag
// flips before the sink is called and stays set whatever the sink returns.
func (s *Session) Submit(ctx context.Context) (model.Submission, error) {
	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return model.Submission{}, ErrAlreadySubmitted
	}
	s.submitted = true
	s.submittedAt = s.now()
	sub := model.Submission{
		ID:          uuid.NewString(),
		FormID:      s.form.ID,
		SessionID:   s.id,
		Responses:   s.responses.Clone(),
		SubmittedAt: s.submittedAt,
	}
	s.mu.Unlock()

	if err := s.sink.Submit(ctx, sub); err != nil {
		s.log.Error().Err(err).Str("submission_id", sub.ID).Msg("Submission sink failed")
	}
	return sub, nil
}

// Restore re-seeds the session from cached answers. Entries whose type does not
// match the question, or that target unknown questions, are dropped.
func (s *Session) Restore(responses model.ResponseSet, submitted bool, submittedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses = model.ResponseSet{}
	for qid, a := range responses {
		switch ans := a.(type) {
		case model.CategorizeAnswer:
			if b, ok := s.boards[qid]; ok {
				b.Restore(ans)
				s.responses[qid] = b.Buckets()
			}
		case model.ClozeAnswer:
			if sh, ok := s.clozes[qid]; ok {
				sh.Restore(ans)
				s.responses[qid] = sh.Answers()
			}
		case model.ComprehensionAnswer:
			if sh, ok := s.sheets[qid]; ok {
				sh.Restore(ans)
				s.responses[qid] = sh.Answers()
			}
		}
	}
	s.submitted = submitted
	s.submittedAt = submittedAt
}

// answer runs op under the session lock and reports the question's new answer
// to the hook once the lock is released. Hook calls for one question arrive in
// the order the answers were accepted; a call that falls behind a newer one for
// the same question is dropped.
func (s *Session) answer(questionID string, op func() error) error {
	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if err := op(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.seq++
	seq := s.seq
	a := s.responses[questionID].CloneAnswer()
	s.mu.Unlock()

	s.report(questionID, seq, a)
	return nil
}

func (s *Session) report(questionID string, seq uint64, a model.Answer) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if seq <= s.reported[questionID] {
		return
	}
	s.reported[questionID] = seq
	s.onAnswer(s.id, questionID, a)
}

func (s *Session) progressLocked() model.Progress {
	return model.Progress{Answered: len(s.responses), Total: len(s.form.Questions)}
}

// lookup finds the engine for questionID in engines, telling apart a question
// that does not exist from one of another type.
func lookup[E any](s *Session, engines map[string]E, questionID string) (E, error) {
	if e, ok := engines[questionID]; ok {
		return e, nil
	}
	var zero E
	if s.form.QuestionIndex(questionID) < 0 {
		return zero, fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}
	return zero, fmt.Errorf("%w: %q", ErrWrongQuestionType, questionID)
}
