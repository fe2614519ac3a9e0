package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/cloze"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/monitoring"
	"github.com/stemsi/formcraft/internal/palette"
	"github.com/stemsi/formcraft/internal/repository"
	"github.com/stemsi/formcraft/internal/store"
)

// Sentinel errors for form editing.
var (
	ErrFormNotFound      = errors.New("form not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrDuplicateQuestion = errors.New("question id already used in this form")
	ErrInvalidIndex      = errors.New("index out of range")
)

const draftWriteTimeout = 2 * time.Second

// FormRepository persists saved forms.
type FormRepository interface {
	Upsert(ctx context.Context, f *model.Form) error
	GetByID(ctx context.Context, id string) (*model.Form, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]model.FormSummary, int, error)
}

// FormCache holds drafts of open sessions and the respondent payload of saved forms.
type FormCache interface {
	SaveDraft(ctx context.Context, f *model.Form) error
	GetDraft(ctx context.Context, formID string) (*model.Form, error)
	DeleteDraft(ctx context.Context, formID string) error
	SetPayload(ctx context.Context, f *model.Form) error
	GetPayload(ctx context.Context, formID string) (*model.Form, error)
}

// FormState is what the builder sees after every call.
type FormState struct {
	Form        model.Form    `json:"form"`
	PreviewMode bool          `json:"preview_mode"`
	Issues      []model.Issue `json:"issues"`
}

// EditorService owns one form store per open editing session, keyed by form id.
type EditorService struct {
	forms FormRepository
	cache FormCache
	log   zerolog.Logger
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*store.Store
}

// NewEditorService creates a new EditorService.
func NewEditorService(forms FormRepository, cache FormCache, log zerolog.Logger) *EditorService {
	return &EditorService{
		forms:    forms,
		cache:    cache,
		log:      log.With().Str("component", "editor_service").Logger(),
		now:      time.Now,
		sessions: make(map[string]*store.Store),
	}
}

// Create opens a session on a brand-new form.
func (s *EditorService) Create(ctx context.Context) (*FormState, error) {
	st := s.newStore()
	f := st.CreateNewForm()
	s.register(f.ID, st)

	s.log.Info().Str("form_id", f.ID).Msg("Form created")
	return stateOf(st), nil
}

// Import opens a session on a document supplied by the caller. Missing ids and
// timestamps are filled in; nothing else is checked.
func (s *EditorService) Import(ctx context.Context, f model.Form) (*FormState, error) {
	if f.ID == "" {
		f.ID = "form_" + uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	if f.Questions == nil {
		f.Questions = []model.Question{}
	}

	st := s.newStore()
	st.SetCurrentForm(f)
	s.register(f.ID, st)

	s.log.Info().Str("form_id", f.ID).Int("questions", len(f.Questions)).Msg("Form imported")
	return stateOf(st), nil
}

// Open resumes a session. A live session wins, then an unsaved draft, then the
// saved form.
func (s *EditorService) Open(ctx context.Context, formID string) (*FormState, error) {
	if st, err := s.storeFor(formID); err == nil {
		return stateOf(st), nil
	}

	f, err := s.cache.GetDraft(ctx, formID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("form_id", formID).Msg("Draft cache read failed, opening saved form")
		}
		f, err = s.forms.GetByID(ctx, formID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	return s.Import(ctx, *f)
}

// Snapshot returns the current state of a session.
func (s *EditorService) Snapshot(formID string) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	return stateOf(st), nil
}

// UpdateForm merges top-level fields.
func (s *EditorService) UpdateForm(formID string, patch model.FormPatch) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	st.UpdateForm(patch)
	return stateOf(st), nil
}

// UpdateTheme merges theme fields.
func (s *EditorService) UpdateTheme(formID string, patch model.ThemePatch) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	st.UpdateTheme(patch)
	return stateOf(st), nil
}

// AddQuestion appends q, giving it an id when it has none.
func (s *EditorService) AddQuestion(formID string, q model.Question) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	if q.Body == nil {
		return nil, model.ErrUnknownQuestionType
	}
	if q.ID == "" {
		q.ID = palette.NewID()
	}

	if c, ok := q.Body.(*model.Cloze); ok {
		c.Blanks = cloze.SyncPositions(c.Sentence, c.Blanks)
	}

	if _, err := st.InsertQuestion(q); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
		}
		return nil, err
	}
	return stateOf(st), nil
}

// AddDefaultQuestion appends the palette default for t.
func (s *EditorService) AddDefaultQuestion(formID string, t model.QuestionType) (*FormState, error) {
	q, err := palette.NewQuestion(t)
	if err != nil {
		return nil, err
	}
	return s.AddQuestion(formID, q)
}

// UpdateQuestion merges patch into one question. Cloze blank positions are
// recomputed whenever the sentence or the blanks change.
func (s *EditorService) UpdateQuestion(formID, questionID string, patch model.QuestionPatch) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	return s.modifyQuestion(st, questionID, func(q model.Question) (model.QuestionPatch, error) {
		return syncClozePositions(q, patch), nil
	})
}

// EditQuestion applies one nested edit (add a category, remove an option, ...).
func (s *EditorService) EditQuestion(formID, questionID string, edit palette.Edit) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	return s.modifyQuestion(st, questionID, func(q model.Question) (model.QuestionPatch, error) {
		patch, err := palette.Apply(q, edit)
		if err != nil {
			return model.QuestionPatch{}, err
		}
		return syncClozePositions(q, patch), nil
	})
}

// DeleteQuestion removes one question.
func (s *EditorService) DeleteQuestion(formID, questionID string) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	if !st.DeleteQuestion(questionID) {
		return nil, ErrQuestionNotFound
	}
	return stateOf(st), nil
}

// ReorderQuestions moves the question at from to index to.
func (s *EditorService) ReorderQuestions(formID string, from, to int) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	if !st.ReorderQuestions(from, to) {
		return nil, fmt.Errorf("%w: from=%d to=%d", ErrInvalidIndex, from, to)
	}
	return stateOf(st), nil
}

// SetPreviewMode switches the session between builder and respondent view.
func (s *EditorService) SetPreviewMode(formID string, enabled bool) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	st.SetPreviewMode(enabled)
	return stateOf(st), nil
}

// Save persists the session's document and refreshes the respondent payload.
func (s *EditorService) Save(ctx context.Context, formID string) (*FormState, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, err
	}
	f, _ := st.Current()

	if err := s.forms.Upsert(ctx, &f); err != nil {
		return nil, fmt.Errorf("save form: %w", err)
	}
	if err := s.cache.SetPayload(ctx, &f); err != nil {
		s.log.Warn().Err(err).Str("form_id", formID).Msg("Failed to refresh form payload cache")
	}

	s.log.Info().Str("form_id", formID).Int("questions", len(f.Questions)).Msg("Form saved")
	return stateOf(st), nil
}

// CloseSession tears down a session and drops its draft.
func (s *EditorService) CloseSession(ctx context.Context, formID string) error {
	s.mu.Lock()
	st, ok := s.sessions[formID]
	delete(s.sessions, formID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	st.Close()
	monitoring.EditorSessions.Dec()
	if err := s.cache.DeleteDraft(ctx, formID); err != nil {
		s.log.Warn().Err(err).Str("form_id", formID).Msg("Failed to delete draft")
	}
	return nil
}

// List returns saved forms.
func (s *EditorService) List(ctx context.Context, page, perPage int) ([]model.FormSummary, int, error) {
	forms, total, err := s.forms.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list forms: %w", err)
	}
	return forms, total, nil
}

// Subscribe registers fn on a session's store. The returned channel is closed
// when the session ends, after which fn is never called again.
func (s *EditorService) Subscribe(formID string, fn func(FormState)) (unsubscribe func(), done <-chan struct{}, err error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return nil, nil, err
	}
	unsubscribe = st.Subscribe(func(state store.State) {
		if state.Form == nil {
			return
		}
		fn(FormState{Form: *state.Form, PreviewMode: state.PreviewMode, Issues: issuesOf(state.Form)})
	})
	return unsubscribe, st.Done(), nil
}

// Draft returns the live document of an open session.
func (s *EditorService) Draft(formID string) (model.Form, error) {
	st, err := s.storeFor(formID)
	if err != nil {
		return model.Form{}, err
	}
	f, _ := st.Current()
	return f, nil
}

// Published returns the saved version of a form, through the payload cache.
func (s *EditorService) Published(ctx context.Context, formID string) (model.Form, error) {
	f, err := s.cache.GetPayload(ctx, formID)
	if err == nil {
		return *f, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Err(err).Str("form_id", formID).Msg("Payload cache read failed")
	}

	f, err = s.forms.GetByID(ctx, formID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Form{}, ErrFormNotFound
	}
	if err != nil {
		return model.Form{}, fmt.Errorf("load form: %w", err)
	}
	if err := s.cache.SetPayload(ctx, f); err != nil {
		s.log.Warn().Err(err).Str("form_id", formID).Msg("Failed to warm form payload cache")
	}
	return *f, nil
}

// Shutdown closes every open session. Drafts stay in Redis until they expire.
func (s *EditorService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.sessions {
		st.Close()
		delete(s.sessions, id)
		monitoring.EditorSessions.Dec()
	}
}

func (s *EditorService) newStore() *store.Store {
	st := store.New(
		store.WithClock(s.now),
		store.WithLogger(s.log),
		store.WithObserver(func(op store.Op, applied bool) {
			monitoring.ObserveStoreOp(string(op), applied)
		}),
	)
	st.Subscribe(s.persistDraft)
	return st
}

// modifyQuestion runs a read-modify-write of one question atomically in st.
func (s *EditorService) modifyQuestion(st *store.Store, questionID string, fn func(model.Question) (model.QuestionPatch, error)) (*FormState, error) {
	ok, err := st.ModifyQuestion(questionID, fn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return stateOf(st), nil
}

func (s *EditorService) register(formID string, st *store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[formID]; ok {
		old.Close()
	} else {
		monitoring.EditorSessions.Inc()
	}
	s.sessions[formID] = st
}

func (s *EditorService) storeFor(formID string) (*store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[formID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// persistDraft mirrors every applied change into the draft cache.
func (s *EditorService) persistDraft(state store.State) {
	if state.Form == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), draftWriteTimeout)
	defer cancel()
	if err := s.cache.SaveDraft(ctx, state.Form); err != nil {
		s.log.Warn().Err(err).Str("form_id", state.Form.ID).Msg("Failed to write draft")
	}
}

func stateOf(st *store.Store) *FormState {
	state := st.State()
	out := &FormState{PreviewMode: state.PreviewMode, Issues: []model.Issue{}}
	if state.Form != nil {
		out.Form = *state.Form
		out.Issues = issuesOf(state.Form)
	}
	return out
}

func issuesOf(f *model.Form) []model.Issue {
	issues := f.Validate()
	if issues == nil {
		return []model.Issue{}
	}
	return issues
}

// syncClozePositions extends a patch that touches a cloze sentence or its blanks
// with blanks whose positions match the resulting sentence.
func syncClozePositions(q model.Question, patch model.QuestionPatch) model.QuestionPatch {
	if q.Type() != model.QuestionTypeCloze || (patch.Sentence == nil && patch.Blanks == nil) {
		return patch
	}
	merged := q.Clone()
	patch.Apply(&merged)
	c := merged.Body.(*model.Cloze)
	patch.Blanks = cloze.SyncPositions(c.Sentence, c.Blanks)
	return patch
}
