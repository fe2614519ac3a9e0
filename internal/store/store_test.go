package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/formcraft/internal/model"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(WithClock(tickingClock()), WithIDGenerator(func() string { return "form_test" }))
	s.CreateNewForm()
	return s
}

func cloze(id string) model.Question {
	return model.Question{
		ID:    id,
		Title: "Q " + id,
		Body: &model.Cloze{
			Sentence: "A ___ B",
			Blanks:   []model.ClozeBlank{{ID: id + "-b1", Position: 2, CorrectAnswer: "x"}},
		},
	}
}

func questionIDs(f model.Form) []string {
	ids := make([]string, len(f.Questions))
	for i, q := range f.Questions {
		ids[i] = q.ID
	}
	return ids
}

func strPtr(s string) *string { return &s }

func TestCreateNewForm(t *testing.T) {
	s := New(WithClock(tickingClock()), WithIDGenerator(func() string { return "form_1" }))
	s.SetPreviewMode(true)

	f := s.CreateNewForm()

	if f.ID != "form_1" {
		t.Errorf("id = %q, want form_1", f.ID)
	}
	if f.Title != DefaultTitle || f.Description != DefaultDescription {
		t.Errorf("header = %q / %q", f.Title, f.Description)
	}
	if f.Theme != model.DefaultTheme() {
		t.Errorf("theme = %+v, want default", f.Theme)
	}
	if len(f.Questions) != 0 {
		t.Errorf("questions = %d, want 0", len(f.Questions))
	}
	if !f.CreatedAt.Equal(f.UpdatedAt) {
		t.Errorf("created_at %v != updated_at %v", f.CreatedAt, f.UpdatedAt)
	}
	if s.PreviewMode() {
		t.Error("CreateNewForm should leave preview mode")
	}
}

func TestMutationsWithoutFormAreNoOps(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(func(State) { calls++ })

	ops := map[string]func() bool{
		"update_form":     func() bool { return s.UpdateForm(model.FormPatch{Title: strPtr("x")}) },
		"add_question":    func() bool { return s.AddQuestion(cloze("q1")) },
		"update_question": func() bool { return s.UpdateQuestion("q1", model.QuestionPatch{Title: strPtr("x")}) },
		"delete_question": func() bool { return s.DeleteQuestion("q1") },
		"reorder":         func() bool { return s.ReorderQuestions(0, 0) },
		"update_theme":    func() bool { return s.UpdateTheme(model.ThemePatch{Font: strPtr("Mono")}) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if op() {
				t.Error("applied without an active form")
			}
		})
	}
	if _, ok := s.Current(); ok {
		t.Error("no form should be active")
	}
	if calls != 0 {
		t.Errorf("listeners called %d times, want 0", calls)
	}
}

func TestUpdateFormReplaceSemantics(t *testing.T) {
	s := newTestStore(t)
	s.AddQuestion(cloze("q1"))
	before, _ := s.Current()

	s.UpdateForm(model.FormPatch{Title: strPtr("Quiz")})
	after, _ := s.Current()

	if after.Title != "Quiz" {
		t.Fatalf("title = %q, want Quiz", after.Title)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("updated_at did not advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}

	// Every field outside the patch is untouched.
	after.Title = before.Title
	after.UpdatedAt = before.UpdatedAt
	if !reflect.DeepEqual(before, after) {
		t.Errorf("untouched fields changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUpdateFormReplacesThemeWholesale(t *testing.T) {
	s := newTestStore(t)
	s.UpdateTheme(model.ThemePatch{BackgroundImage: strPtr("img://bg")})

	theme := model.Theme{PrimaryColor: "#000", SecondaryColor: "#111", AccentColor: "#222",
		BackgroundColor: "#fff", TextColor: "#333", Font: "Mono"}
	s.UpdateForm(model.FormPatch{Theme: &theme})

	f, _ := s.Current()
	if f.Theme != theme {
		t.Errorf("theme = %+v, want %+v", f.Theme, theme)
	}
}

func TestUpdateThemeMerges(t *testing.T) {
	s := newTestStore(t)
	s.UpdateTheme(model.ThemePatch{Font: strPtr("Roboto")})

	f, _ := s.Current()
	want := model.DefaultTheme()
	want.Font = "Roboto"
	if f.Theme != want {
		t.Errorf("theme = %+v, want %+v", f.Theme, want)
	}
}

func TestIDsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		s.AddQuestion(cloze(id))
	}

	s.UpdateForm(model.FormPatch{Title: strPtr("t")})
	s.UpdateQuestion("b", model.QuestionPatch{Title: strPtr("renamed"), Sentence: strPtr("___")})
	s.ReorderQuestions(2, 0)
	s.UpdateTheme(model.ThemePatch{Font: strPtr("Mono")})
	s.DeleteQuestion("a")

	f, _ := s.Current()
	if f.ID != "form_test" {
		t.Errorf("form id = %q", f.ID)
	}
	if got := questionIDs(f); !reflect.DeepEqual(got, []string{"c", "b"}) {
		t.Errorf("question ids = %v, want [c b]", got)
	}
}

func TestReorderQuestions(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"to end", 0, 3, []string{"b", "c", "d", "a"}},
		{"same index", 1, 1, []string{"a", "b", "c", "d"}},
		{"out of range from", 4, 0, []string{"a", "b", "c", "d"}},
		{"negative to", 0, -1, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			for _, id := range []string{"a", "b", "c", "d"} {
				s.AddQuestion(cloze(id))
			}
			s.ReorderQuestions(tt.from, tt.to)
			f, _ := s.Current()
			if got := questionIDs(f); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeleteQuestionMissIsNoOp(t *testing.T) {
	s := newTestStore(t)
	s.AddQuestion(cloze("q1"))
	before, _ := s.Current()

	if s.DeleteQuestion("nonexistent") {
		t.Error("delete of a missing id reported a change")
	}
	after, _ := s.Current()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("form changed on miss:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUpdateQuestion(t *testing.T) {
	s := newTestStore(t)
	s.AddQuestion(cloze("q1"))
	s.AddQuestion(cloze("q2"))

	t.Run("merges and keeps position", func(t *testing.T) {
		s.UpdateQuestion("q1", model.QuestionPatch{
			Sentence: strPtr("X ___ Y ___"),
			Passage:  strPtr("ignored for cloze"),
		})
		f, _ := s.Current()
		if f.Questions[0].ID != "q1" {
			t.Fatalf("q1 moved to %v", questionIDs(f))
		}
		body := f.Questions[0].Body.(*model.Cloze)
		if body.Sentence != "X ___ Y ___" {
			t.Errorf("sentence = %q", body.Sentence)
		}
		if len(body.Blanks) != 1 || f.Questions[0].Title != "Q q1" {
			t.Errorf("fields outside the patch changed: %+v", f.Questions[0])
		}
	})

	t.Run("miss keeps updated_at", func(t *testing.T) {
		before, _ := s.Current()
		s.UpdateQuestion("missing", model.QuestionPatch{Title: strPtr("x")})
		after, _ := s.Current()
		if !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("updated_at changed on miss")
		}
	})
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	q := cloze("q1")
	s.AddQuestion(q)

	// Mutating the caller's value after handing it in must not reach the store.
	q.Body.(*model.Cloze).Sentence = "changed"
	snap, _ := s.Current()
	snap.Questions[0].Title = "changed too"

	f, _ := s.Current()
	if f.Questions[0].Body.(*model.Cloze).Sentence != "A ___ B" {
		t.Error("store shares the added question with the caller")
	}
	if f.Questions[0].Title != "Q q1" {
		t.Error("store shares its snapshot with readers")
	}
}

func TestSetPreviewModeKeepsDocument(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.Current()
	calls := 0
	s.Subscribe(func(State) { calls++ })

	s.SetPreviewMode(true)
	s.SetPreviewMode(true)

	after, _ := s.Current()
	if !reflect.DeepEqual(before, after) {
		t.Error("preview toggle touched the document")
	}
	if !s.PreviewMode() {
		t.Error("preview mode not set")
	}
	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
}

func TestSetCurrentFormKeepsTimestamps(t *testing.T) {
	s := New()
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.SetCurrentForm(model.Form{ID: "loaded", CreatedAt: ts, UpdatedAt: ts})

	f, ok := s.Current()
	if !ok || f.ID != "loaded" || !f.UpdatedAt.Equal(ts) {
		t.Errorf("current = %+v, %v", f, ok)
	}
}

func TestUpdatedAtNeverGoesBackwards(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	s.CreateNewForm()

	s.UpdateForm(model.FormPatch{Title: strPtr("a")})
	first, _ := s.Current()
	s.UpdateForm(model.FormPatch{Title: strPtr("b")})
	second, _ := s.Current()

	if !first.UpdatedAt.After(fixed) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at not strictly increasing: %v, %v, %v", fixed, first.UpdatedAt, second.UpdatedAt)
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	var order []string
	var last State
	unsubA := s.Subscribe(func(st State) { order = append(order, "a"); last = st })
	s.Subscribe(func(State) { order = append(order, "b") })

	s.AddQuestion(cloze("q1"))
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("order = %v, want [a b]", order)
	}
	if last.Form == nil || len(last.Form.Questions) != 1 {
		t.Fatalf("listener state = %+v", last)
	}

	order = nil
	s.DeleteQuestion("missing")
	if len(order) != 0 {
		t.Errorf("listeners called on a no-op: %v", order)
	}

	unsubA()
	unsubA()
	s.DeleteQuestion("q1")
	if !reflect.DeepEqual(order, []string{"b"}) {
		t.Errorf("order after unsubscribe = %v, want [b]", order)
	}

	s.Close()
	order = nil
	s.AddQuestion(cloze("q2"))
	if len(order) != 0 {
		t.Errorf("listeners called after Close: %v", order)
	}
}

func TestInsertQuestion(t *testing.T) {
	s := newTestStore(t)
	if ok, err := s.InsertQuestion(cloze("q1")); !ok || err != nil {
		t.Fatalf("insert = %v, %v", ok, err)
	}
	before, _ := s.Current()

	ok, err := s.InsertQuestion(cloze("q1"))
	if ok || !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate insert = %v, %v", ok, err)
	}
	after, _ := s.Current()
	if !reflect.DeepEqual(before, after) {
		t.Error("rejected insert changed the form")
	}

	if ok, err := New().InsertQuestion(cloze("q1")); ok || err != nil {
		t.Errorf("insert without form = %v, %v", ok, err)
	}
}

func TestModifyQuestion(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name      string
		id        string
		fn        func(model.Question) (model.QuestionPatch, error)
		wantOK    bool
		wantErr   error
		wantTitle string
	}{
		{
			name: "patch from current",
			id:   "q1",
			fn: func(q model.Question) (model.QuestionPatch, error) {
				title := q.Title + "!"
				return model.QuestionPatch{Title: &title}, nil
			},
			wantOK:    true,
			wantTitle: "Q q1!",
		},
		{
			name:      "unknown id",
			id:        "nope",
			fn:        func(model.Question) (model.QuestionPatch, error) { return model.QuestionPatch{}, errBoom },
			wantTitle: "Q q1",
		},
		{
			name:      "fn error",
			id:        "q1",
			fn:        func(model.Question) (model.QuestionPatch, error) { return model.QuestionPatch{}, errBoom },
			wantErr:   errBoom,
			wantTitle: "Q q1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			s.AddQuestion(cloze("q1"))
			calls := 0
			s.Subscribe(func(State) { calls++ })

			ok, err := s.ModifyQuestion(tt.id, tt.fn)
			if ok != tt.wantOK || !errors.Is(err, tt.wantErr) {
				t.Fatalf("ModifyQuestion = %v, %v; want %v, %v", ok, err, tt.wantOK, tt.wantErr)
			}
			f, _ := s.Current()
			if f.Questions[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", f.Questions[0].Title, tt.wantTitle)
			}
			if want := map[bool]int{true: 1, false: 0}[tt.wantOK]; calls != want {
				t.Errorf("listener calls = %d, want %d", calls, want)
			}
		})
	}
}

func TestConcurrentMutations(t *testing.T) {
	const workers = 200

	tests := []struct {
		name  string
		setup func(s *Store)
		op    func(s *Store, i int)
		check func(t *testing.T, f model.Form)
	}{
		{
			name:  "modify same question",
			setup: func(s *Store) { s.AddQuestion(cloze("q1")) },
			op: func(s *Store, _ int) {
				s.ModifyQuestion("q1", func(q model.Question) (model.QuestionPatch, error) {
					c := q.Body.(*model.Cloze)
					blanks := append(c.Blanks, model.ClozeBlank{ID: fmt.Sprintf("b%d", len(c.Blanks))})
					return model.QuestionPatch{Blanks: blanks}, nil
				})
			},
			check: func(t *testing.T, f model.Form) {
				if n := len(f.Questions[0].Body.(*model.Cloze).Blanks); n != workers+1 {
					t.Errorf("blanks = %d, want %d", n, workers+1)
				}
			},
		},
		{
			name:  "insert distinct ids",
			setup: func(*Store) {},
			op:    func(s *Store, i int) { s.InsertQuestion(cloze(fmt.Sprintf("q%d", i))) },
			check: func(t *testing.T, f model.Form) {
				if len(f.Questions) != workers {
					t.Errorf("questions = %d, want %d", len(f.Questions), workers)
				}
			},
		},
		{
			name:  "insert same id",
			setup: func(*Store) {},
			op:    func(s *Store, _ int) { s.InsertQuestion(cloze("same")) },
			check: func(t *testing.T, f model.Form) {
				if len(f.Questions) != 1 {
					t.Errorf("questions = %d, want 1", len(f.Questions))
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.CreateNewForm()
			tt.setup(s)

			var (
				mu   sync.Mutex
				last State
			)
			s.Subscribe(func(st State) {
				mu.Lock()
				last = st
				mu.Unlock()
			})

			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					tt.op(s, i)
					_ = s.State()
				}(i)
			}
			wg.Wait()

			f, _ := s.Current()
			tt.check(t, f)
			if last.Form == nil || !reflect.DeepEqual(*last.Form, f) {
				t.Error("last listener state is not the final form")
			}
		})
	}
}

func TestListenersSeeChangesInOrder(t *testing.T) {
	s := newTestStore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		once   sync.Once
		mu     sync.Mutex
		titles []string
	)
	s.Subscribe(func(st State) {
		once.Do(func() {
			close(entered)
			<-release
		})
		mu.Lock()
		titles = append(titles, st.Form.Title)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.UpdateForm(model.FormPatch{Title: strPtr("A")})
	}()
	<-entered
	go func() {
		defer wg.Done()
		s.UpdateForm(model.FormPatch{Title: strPtr("B")})
	}()

	// Let the second change commit while the first delivery is stuck.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if f, _ := s.Current(); f.Title == "B" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second update never applied")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	if len(titles) == 0 || titles[len(titles)-1] != "B" {
		t.Errorf("listener titles = %v, want last B", titles)
	}
}

func TestDone(t *testing.T) {
	s := newTestStore(t)
	select {
	case <-s.Done():
		t.Fatal("done closed before Close")
	default:
	}

	s.Close()
	s.Close()
	select {
	case <-s.Done():
	default:
		t.Fatal("done still open after Close")
	}
	if _, ok := s.Current(); !ok {
		t.Error("store not readable after Close")
	}
}

func TestObserver(t *testing.T) {
	type call struct {
		op      Op
		applied bool
	}
	var calls []call
	s := New(WithObserver(func(op Op, applied bool) { calls = append(calls, call{op, applied}) }))

	s.UpdateForm(model.FormPatch{})
	s.CreateNewForm()
	s.DeleteQuestion("x")

	want := []call{
		{OpUpdateForm, false},
		{OpCreateNewForm, true},
		{OpDeleteQuestion, false},
	}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestEndToEndCategorizeDocument(t *testing.T) {
	s := newTestStore(t)
	s.AddQuestion(model.Question{
		ID:    "cat",
		Title: "Sort",
		Body: &model.Categorize{
			Categories: []string{"Fruit", "Veg"},
			Items: []model.CategorizeItem{
				{ID: "i1", Text: "Apple", Category: "Fruit"},
				{ID: "i2", Text: "Carrot", Category: "Veg"},
			},
		},
	})
	s.SetPreviewMode(true)

	st := s.State()
	if !st.PreviewMode || st.Form == nil || len(st.Form.Questions) != 1 {
		t.Fatalf("state = %+v", st)
	}
	if issues := st.Form.Validate(); len(issues) != 0 {
		t.Errorf("unexpected issues: %v", issues)
	}
}
