package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/collector"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/monitoring"
	"github.com/stemsi/formcraft/internal/repository"
)

const answerWriteTimeout = 2 * time.Second

// FormSource resolves the document a respondent fills out.
type FormSource interface {
	// Draft returns the live document of an open editing session.
	Draft(formID string) (model.Form, error)
	// Published returns the last saved version.
	Published(ctx context.Context, formID string) (model.Form, error)
}

// ResponseCache keeps in-progress answers between requests.
type ResponseCache interface {
	Start(ctx context.Context, sessionID, formID string, preview bool) error
	SaveAnswer(ctx context.Context, sessionID, questionID string, a model.Answer) error
	MarkSubmitted(ctx context.Context, sessionID string, at time.Time) error
	Load(ctx context.Context, sessionID string) (*repository.CachedResponse, error)
}

// SubmissionReader lists persisted submissions.
type SubmissionReader interface {
	ListByForm(ctx context.Context, formID string, limit, offset int) ([]model.Submission, int, error)
}

// StartResult is returned when a respondent session opens.
type StartResult struct {
	SessionID string     `json:"session_id"`
	Preview   bool       `json:"preview"`
	Form      model.Form `json:"form"`
}

// RespondentService runs respondent sessions. Sessions live in memory and are
// mirrored to the response cache so any instance can resume them.
type RespondentService struct {
	forms       FormSource
	cache       ResponseCache
	submissions SubmissionReader
	sink        collector.Sink
	preview     collector.Sink
	log         zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*collector.Session
}

// NewRespondentService creates a new RespondentService. Saved-form submissions
// go to sink; preview submissions are only logged.
func NewRespondentService(forms FormSource, cache ResponseCache, submissions SubmissionReader, sink collector.Sink, log zerolog.Logger) *RespondentService {
	log = log.With().Str("component", "respondent_service").Logger()
	return &RespondentService{
		forms:       forms,
		cache:       cache,
		submissions: submissions,
		sink:        countingSink(sink),
		preview:     collector.NewLogSink(log),
		log:         log,
		sessions:    make(map[string]*collector.Session),
	}
}

// Start opens a session on a form. With preview set, the live draft is used.
func (s *RespondentService) Start(ctx context.Context, formID string, preview bool) (*StartResult, error) {
	form, err := s.resolveForm(ctx, formID, preview)
	if err != nil {
		return nil, err
	}

	sess := s.newSession(form, preview)
	if err := s.cache.Start(ctx, sess.ID(), formID, preview); err != nil {
		return nil, fmt.Errorf("start response session: %w", err)
	}
	s.track(sess)

	s.log.Info().Str("session_id", sess.ID()).Str("form_id", formID).Bool("preview", preview).Msg("Respondent session started")
	return &StartResult{SessionID: sess.ID(), Preview: preview, Form: sess.Form()}, nil
}

// View returns the current state of a session.
func (s *RespondentService) View(ctx context.Context, sessionID string) (*collector.View, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

// Categorize moves an item into a category. An empty category returns it to the pool.
func (s *RespondentService) Categorize(ctx context.Context, sessionID, questionID, item, category string) (*collector.View, error) {
	return s.act(ctx, sessionID, func(sess *collector.Session) error {
		if category == "" {
			return sess.Unassign(questionID, item)
		}
		return sess.Assign(questionID, item, category)
	})
}

// FillBlank records a cloze answer.
func (s *RespondentService) FillBlank(ctx context.Context, sessionID, questionID, blankID, answer string) (*collector.View, error) {
	return s.act(ctx, sessionID, func(sess *collector.Session) error {
		return sess.FillBlank(questionID, blankID, answer)
	})
}

// AnswerSubQuestion records a comprehension answer.
func (s *RespondentService) AnswerSubQuestion(ctx context.Context, sessionID, questionID, subQuestionID, answer string) (*collector.View, error) {
	return s.act(ctx, sessionID, func(sess *collector.Session) error {
		return sess.AnswerSubQuestion(questionID, subQuestionID, answer)
	})
}

// Submit hands the session's answers to its sink. The session then leaves
// memory; its submitted state stays in the cache. When the cache cannot record
// the submission the session stays in memory, so this instance keeps refusing
// a second submit.
func (s *RespondentService) Submit(ctx context.Context, sessionID string) (*model.Submission, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sub, err := sess.Submit(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.MarkSubmitted(ctx, sessionID, sub.SubmittedAt); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to mark session submitted, keeping it in memory")
		return &sub, nil
	}
	s.forget(sessionID)

	return &sub, nil
}

// ListSubmissions returns persisted submissions of a form.
func (s *RespondentService) ListSubmissions(ctx context.Context, formID string, page, perPage int) ([]model.Submission, int, error) {
	subs, total, err := s.submissions.ListByForm(ctx, formID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return subs, total, nil
}

// Shutdown drops every in-memory session.
func (s *RespondentService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sessions {
		delete(s.sessions, id)
		monitoring.ResponseSessions.Dec()
	}
}

func (s *RespondentService) act(ctx context.Context, sessionID string, fn func(*collector.Session) error) (*collector.View, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

// session returns the in-memory session, resuming it from the cache when needed.
func (s *RespondentService) session(ctx context.Context, sessionID string) (*collector.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	cached, err := s.cache.Load(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load response session: %w", err)
	}

	form, err := s.resolveForm(ctx, cached.FormID, cached.Preview)
	if err != nil {
		return nil, err
	}
	sess = s.newSession(form, cached.Preview, collector.WithSessionID(sessionID))
	sess.Restore(cached.Responses, cached.Submitted, cached.SubmittedAt)

	if cached.Submitted {
		return sess, nil
	}
	return s.track(sess), nil
}

func (s *RespondentService) resolveForm(ctx context.Context, formID string, preview bool) (model.Form, error) {
	if preview {
		form, err := s.forms.Draft(formID)
		if errors.Is(err, ErrSessionNotFound) {
			return model.Form{}, ErrFormNotFound
		}
		return form, err
	}
	return s.forms.Published(ctx, formID)
}

func (s *RespondentService) newSession(form model.Form, preview bool, opts ...collector.Option) *collector.Session {
	sink := s.sink
	if preview {
		sink = s.preview
	}
	opts = append(opts, collector.WithLogger(s.log), collector.WithAnswerHook(s.saveAnswer))
	return collector.NewSession(form, sink, opts...)
}

// track registers sess unless another request resumed the same id first, in
// which case the existing session wins.
func (s *RespondentService) track(sess *collector.Session) *collector.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sess.ID()]; ok {
		return existing
	}
	s.sessions[sess.ID()] = sess
	monitoring.ResponseSessions.Inc()
	return sess
}

func (s *RespondentService) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		monitoring.ResponseSessions.Dec()
	}
}

func (s *RespondentService) saveAnswer(sessionID, questionID string, a model.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), answerWriteTimeout)
	defer cancel()
	if err := s.cache.SaveAnswer(ctx, sessionID, questionID, a); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Str("question_id", questionID).Msg("Failed to cache answer")
	}
}

func countingSink(next collector.Sink) collector.Sink {
	return collector.SinkFunc(func(ctx context.Context, sub model.Submission) error {
		if err := next.Submit(ctx, sub); err != nil {
			monitoring.Submissions.WithLabelValues("failed").Inc()
			return err
		}
		monitoring.Submissions.WithLabelValues("queued").Inc()
		return nil
	})
}
