// Package store holds the single mutable source of truth for the form being
// edited in one editing session.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/model"
)

// Defaults applied by CreateNewForm.
const (
	DefaultTitle       = "Untitled Form"
	DefaultDescription = "Form description"
)

// ErrDuplicateID is returned by InsertQuestion when the id is already taken.
var ErrDuplicateID = errors.New("duplicate question id")

// Op names a store operation. It is passed to observers.
type Op string

const (
	OpCreateNewForm    Op = "create_new_form"
	OpSetCurrentForm   Op = "set_current_form"
	OpUpdateForm       Op = "update_form"
	OpAddQuestion      Op = "add_question"
	OpUpdateQuestion   Op = "update_question"
	OpDeleteQuestion   Op = "delete_question"
	OpReorderQuestions Op = "reorder_questions"
	OpUpdateTheme      Op = "update_theme"
	OpSetPreviewMode   Op = "set_preview_mode"
)

// State is what listeners receive after every applied change.
// Form is nil when no form is active. Listeners must treat it as read-only.
type State struct {
	Form        *model.Form
	PreviewMode bool
}

// Listener is called synchronously after an applied change. Calls are
// serialised and never go back in time: a listener that is still busy when
// several changes land sees only the newest of them next. Listeners must not
// mutate the store they are subscribed to.
type Listener func(State)

// Observer is told about every operation, applied or not.
type Observer func(op Op, applied bool)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the form id generator used by CreateNewForm.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger used for contract violations.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithObserver installs a hook that sees every operation.
func WithObserver(obs Observer) Option {
	return func(s *Store) { s.observe = obs }
}

type subscription struct {
	id int
	fn Listener
}

// Store owns one active form. Every mutation builds a new form value from the
// previous one and swaps it in, so a snapshot handed out is never changed afterwards.
type Store struct {
	mu        sync.Mutex
	form      *model.Form
	preview   bool
	listeners []subscription
	nextSubID int
	version   uint64
	done      chan struct{}
	closeOnce sync.Once

	// deliverMu orders listener calls; delivered is the newest version they saw.
	deliverMu sync.Mutex
	delivered uint64

	now     func() time.Time
	newID   func() string
	log     zerolog.Logger
	observe Observer
}

// New creates an empty store: no active form, builder mode.
func New(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		newID:   func() string { return "form_" + uuid.NewString() },
		log:     zerolog.Nop(),
		observe: func(Op, bool) {},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "form_store").Logger()
	return s
}

// CreateNewForm replaces the active form with a fresh one and leaves preview mode.
func (s *Store) CreateNewForm() model.Form {
	now := s.now()
	f := model.Form{
		ID:          s.newID(),
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Theme:       model.DefaultTheme(),
		Questions:   []model.Question{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.form = &f
	s.preview = false
	d := s.publishLocked()
	s.mu.Unlock()

	s.observe(OpCreateNewForm, true)
	s.deliver(d)
	return f.Clone()
}

// SetCurrentForm replaces the active form wholesale. The document is stored as
// given, timestamps included.
func (s *Store) SetCurrentForm(form model.Form) {
	f := form.Clone()

	s.mu.Lock()
	s.form = &f
	d := s.publishLocked()
	s.mu.Unlock()

	s.observe(OpSetCurrentForm, true)
	s.deliver(d)
}

// UpdateForm shallow-merges top-level fields. It reports whether a form was active.
func (s *Store) UpdateForm(patch model.FormPatch) bool {
	return s.apply(OpUpdateForm, func(f *model.Form) bool {
		patch.Apply(f)
		return true
	})
}

// AddQuestion appends q. The caller owns id generation.
func (s *Store) AddQuestion(q model.Question) bool {
	q = q.Clone()
	return s.apply(OpAddQuestion, func(f *model.Form) bool {
		f.Questions = append(f.Questions, q)
		return true
	})
}

// InsertQuestion appends q unless the form already holds a question with the
// same id, in which case it returns ErrDuplicateID. The check and the append
// happen under one lock.
func (s *Store) InsertQuestion(q model.Question) (bool, error) {
	q = q.Clone()
	return s.applyErr(OpAddQuestion, func(f *model.Form) (bool, error) {
		if f.QuestionIndex(q.ID) >= 0 {
			return false, ErrDuplicateID
		}
		f.Questions = append(f.Questions, q)
		return true, nil
	})
}

// UpdateQuestion merges patch into the question with the given id, keeping its
// position. It is a no-op when the id is unknown.
func (s *Store) UpdateQuestion(id string, patch model.QuestionPatch) bool {
	return s.apply(OpUpdateQuestion, func(f *model.Form) bool {
		i := f.QuestionIndex(id)
		if i < 0 {
			return false
		}
		patch.Apply(&f.Questions[i])
		return true
	})
}

// ModifyQuestion builds a patch from the current version of the question with
// the given id and merges it, all under the store lock, so concurrent edits of
// the same question never lose each other's changes. fn receives a copy and
// must not call back into the store. An unknown id reports false; an error from
// fn leaves the form untouched and is returned as is.
func (s *Store) ModifyQuestion(id string, fn func(q model.Question) (model.QuestionPatch, error)) (bool, error) {
	return s.applyErr(OpUpdateQuestion, func(f *model.Form) (bool, error) {
		i := f.QuestionIndex(id)
		if i < 0 {
			return false, nil
		}
		patch, err := fn(f.Questions[i].Clone())
		if err != nil {
			return false, err
		}
		patch.Apply(&f.Questions[i])
		return true, nil
	})
}

// DeleteQuestion removes the question with the given id. It is a no-op when the id is unknown.
func (s *Store) DeleteQuestion(id string) bool {
	return s.apply(OpDeleteQuestion, func(f *model.Form) bool {
		i := f.QuestionIndex(id)
		if i < 0 {
			return false
		}
		f.Questions = append(f.Questions[:i], f.Questions[i+1:]...)
		return true
	})
}

// ReorderQuestions moves the question at from so that it ends up at index to of
// the resulting sequence. Both indices must lie in [0, len(questions)); anything
// else is logged and ignored.
func (s *Store) ReorderQuestions(from, to int) bool {
	return s.apply(OpReorderQuestions, func(f *model.Form) bool {
		n := len(f.Questions)
		if from < 0 || from >= n || to < 0 || to >= n {
			s.log.Warn().
				Str("form_id", f.ID).
				Int("from", from).
				Int("to", to).
				Int("len", n).
				Msg("Reorder indices out of range")
			return false
		}
		moved := f.Questions[from]
		rest := append(f.Questions[:from:from], f.Questions[from+1:]...)
		out := make([]model.Question, 0, n)
		out = append(out, rest[:to]...)
		out = append(out, moved)
		out = append(out, rest[to:]...)
		f.Questions = out
		return true
	})
}

// UpdateTheme shallow-merges into the active form's theme.
func (s *Store) UpdateTheme(patch model.ThemePatch) bool {
	return s.apply(OpUpdateTheme, func(f *model.Form) bool {
		patch.Apply(&f.Theme)
		return true
	})
}

// SetPreviewMode switches between builder and respondent view. The document is
// not touched. Listeners are only notified when the flag changes.
func (s *Store) SetPreviewMode(enabled bool) {
	s.mu.Lock()
	if s.preview == enabled {
		s.mu.Unlock()
		s.observe(OpSetPreviewMode, false)
		return
	}
	s.preview = enabled
	d := s.publishLocked()
	s.mu.Unlock()

	s.observe(OpSetPreviewMode, true)
	s.deliver(d)
}

// Current returns a copy of the active form.
func (s *Store) Current() (model.Form, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.form == nil {
		return model.Form{}, false
	}
	return s.form.Clone(), true
}

// PreviewMode reports whether the store is in respondent view.
func (s *Store) PreviewMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// State returns a copy of the whole store state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn for every applied change and returns a function that
// removes it. Listeners run in subscription order on the mutating goroutine.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Close drops every listener and closes the Done channel. The store stays
// readable. Calling Close again has no effect.
func (s *Store) Close() {
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once Close has been called.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// apply runs edit on a copy of the active form and swaps the copy in when edit
// reports a change. Without an active form every edit is a no-op.
func (s *Store) apply(op Op, edit func(f *model.Form) bool) bool {
	ok, _ := s.applyErr(op, func(f *model.Form) (bool, error) {
		return edit(f), nil
	})
	return ok
}

func (s *Store) applyErr(op Op, edit func(f *model.Form) (bool, error)) (bool, error) {
	s.mu.Lock()
	if s.form == nil {
		s.mu.Unlock()
		s.observe(op, false)
		return false, nil
	}

	next := s.form.Clone()
	changed, err := edit(&next)
	if err != nil || !changed {
		s.mu.Unlock()
		s.observe(op, false)
		return false, err
	}
	next.UpdatedAt = s.advance(s.form.UpdatedAt)
	s.form = &next
	d := s.publishLocked()
	s.mu.Unlock()

	s.observe(op, true)
	s.deliver(d)
	return true, nil
}

// advance returns the clock reading, pushed past prev when the clock lags.
func (s *Store) advance(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

func (s *Store) stateLocked() State {
	st := State{PreviewMode: s.preview}
	if s.form != nil {
		f := s.form.Clone()
		st.Form = &f
	}
	return st
}

// delivery is one published change waiting to reach the listeners.
type delivery struct {
	version uint64
	state   State
	fns     []Listener
}

// publishLocked stamps the change that was just applied with the next version
// and captures what its listeners should see.
func (s *Store) publishLocked() delivery {
	s.version++
	d := delivery{version: s.version}
	if len(s.listeners) == 0 {
		return d
	}
	d.fns = make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		d.fns[i] = sub.fn
	}
	d.state = s.stateLocked()
	return d
}

// deliver hands d to its listeners unless a newer change already reached them.
func (s *Store) deliver(d delivery) {
	if len(d.fns) == 0 {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if d.version <= s.delivered {
		return
	}
	s.delivered = d.version
	for _, fn := range d.fns {
		fn(d.state)
	}
}
