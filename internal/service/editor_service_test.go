package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/palette"
	"github.com/stemsi/formcraft/internal/store"
)

func newEditor() (*EditorService, *memFormRepo, *memFormCache) {
	repo, cache := newMemFormRepo(), newMemFormCache()
	return NewEditorService(repo, cache, zerolog.Nop()), repo, cache
}

func strPtr(s string) *string { return &s }

func TestEditorCreate(t *testing.T) {
	svc, _, cache := newEditor()

	st, err := svc.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Form.Title != store.DefaultTitle || len(st.Form.Questions) != 0 {
		t.Errorf("form = %+v", st.Form)
	}
	if st.PreviewMode {
		t.Error("new session starts in preview mode")
	}
	if _, ok := cache.drafts[st.Form.ID]; !ok {
		t.Error("draft not written on create")
	}
}

func TestEditorUnknownSession(t *testing.T) {
	svc, _, _ := newEditor()

	calls := map[string]func() error{
		"snapshot": func() error { _, err := svc.Snapshot("nope"); return err },
		"update":   func() error { _, err := svc.UpdateForm("nope", model.FormPatch{}); return err },
		"add":      func() error { _, err := svc.AddDefaultQuestion("nope", model.QuestionTypeCloze); return err },
		"reorder":  func() error { _, err := svc.ReorderQuestions("nope", 0, 0); return err },
		"preview":  func() error { _, err := svc.SetPreviewMode("nope", true); return err },
		"save":     func() error { _, err := svc.Save(context.Background(), "nope"); return err },
		"close":    func() error { return svc.CloseSession(context.Background(), "nope") },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("err = %v, want ErrSessionNotFound", err)
			}
		})
	}
}

func TestEditorQuestionLifecycle(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())
	id := st.Form.ID

	for _, typ := range []model.QuestionType{
		model.QuestionTypeCategorize,
		model.QuestionTypeCloze,
		model.QuestionTypeComprehension,
	} {
		if st, _ = svc.AddDefaultQuestion(id, typ); st == nil {
			t.Fatalf("add %s failed", typ)
		}
	}
	if len(st.Form.Questions) != 3 {
		t.Fatalf("questions = %d", len(st.Form.Questions))
	}
	if len(st.Issues) != 0 {
		t.Errorf("default questions report issues: %v", st.Issues)
	}

	first := st.Form.Questions[0].ID
	st, err := svc.ReorderQuestions(id, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if st.Form.Questions[2].ID != first {
		t.Error("reorder did not move the first question to the end")
	}

	if _, err := svc.ReorderQuestions(id, 0, 3); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("out of range reorder err = %v", err)
	}

	st, err = svc.DeleteQuestion(id, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Form.Questions) != 2 {
		t.Errorf("questions after delete = %d", len(st.Form.Questions))
	}
	if _, err := svc.DeleteQuestion(id, first); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if _, err := svc.UpdateQuestion(id, first, model.QuestionPatch{Title: strPtr("x")}); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("update of deleted question err = %v", err)
	}
}

func TestEditorAddQuestionRejectsDuplicateID(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())

	q := palette.NewCloze()
	if _, err := svc.AddQuestion(st.Form.ID, q); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddQuestion(st.Form.ID, q); !errors.Is(err, ErrDuplicateQuestion) {
		t.Errorf("err = %v, want ErrDuplicateQuestion", err)
	}
}

func TestEditorClozePositionsFollowSentence(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())
	st, _ = svc.AddDefaultQuestion(st.Form.ID, model.QuestionTypeCloze)
	formID, qid := st.Form.ID, st.Form.Questions[0].ID

	st, err := svc.UpdateQuestion(formID, qid, model.QuestionPatch{Sentence: strPtr("___ and ___")})
	if err != nil {
		t.Fatal(err)
	}
	blanks := st.Form.Questions[0].Body.(*model.Cloze).Blanks
	if blanks[0].Position != 0 || blanks[1].Position != 8 {
		t.Errorf("positions = %d, %d, want 0, 8", blanks[0].Position, blanks[1].Position)
	}

	// A third blank has no marker yet.
	st, err = svc.EditQuestion(formID, qid, palette.Edit{Op: palette.OpAddBlank})
	if err != nil {
		t.Fatal(err)
	}
	blanks = st.Form.Questions[0].Body.(*model.Cloze).Blanks
	if len(blanks) != 3 || blanks[2].Position != -1 {
		t.Errorf("blanks = %+v", blanks)
	}
	if len(st.Issues) != 1 || st.Issues[0].Code != model.IssueBlankCountMismatch {
		t.Errorf("issues = %v", st.Issues)
	}
}

func TestEditorEditQuestionErrors(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())
	st, _ = svc.AddDefaultQuestion(st.Form.ID, model.QuestionTypeCategorize)
	formID, qid := st.Form.ID, st.Form.Questions[0].ID

	if _, err := svc.EditQuestion(formID, qid, palette.Edit{Op: palette.OpAddBlank}); !errors.Is(err, palette.ErrWrongVariant) {
		t.Errorf("wrong variant err = %v", err)
	}
	if _, err := svc.EditQuestion(formID, "missing", palette.Edit{Op: palette.OpAddCategory}); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("missing question err = %v", err)
	}

	st, err := svc.EditQuestion(formID, qid, palette.Edit{Op: palette.OpRenameCategory, Index: 0, Value: "Fruit"})
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Issues) != 1 || st.Issues[0].Code != model.IssueDanglingCategory {
		t.Errorf("issues after rename = %v", st.Issues)
	}
}

func TestEditorSaveCloseOpen(t *testing.T) {
	svc, repo, cache := newEditor()
	ctx := context.Background()

	st, _ := svc.Create(ctx)
	id := st.Form.ID
	svc.UpdateForm(id, model.FormPatch{Title: strPtr("Quiz")})

	if _, err := svc.Save(ctx, id); err != nil {
		t.Fatal(err)
	}
	if repo.forms[id].Title != "Quiz" {
		t.Errorf("saved title = %q", repo.forms[id].Title)
	}
	if _, ok := cache.payloads[id]; !ok {
		t.Error("payload cache not refreshed")
	}

	// Unsaved change lives only in the draft.
	svc.UpdateForm(id, model.FormPatch{Title: strPtr("Quiz v2")})

	if err := svc.CloseSession(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.drafts[id]; ok {
		t.Error("draft kept after close")
	}
	if _, err := svc.Snapshot(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("snapshot after close err = %v", err)
	}

	st, err := svc.Open(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if st.Form.Title != "Quiz" {
		t.Errorf("reopened title = %q, want saved version", st.Form.Title)
	}

	if _, err := svc.Open(ctx, "form_missing"); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("open missing err = %v", err)
	}
}

func TestEditorOpenPrefersDraft(t *testing.T) {
	svc, _, cache := newEditor()
	ctx := context.Background()

	draft := model.Form{ID: "form_d", Title: "Draft", Questions: []model.Question{}}
	cache.SaveDraft(ctx, &draft)

	st, err := svc.Open(ctx, "form_d")
	if err != nil {
		t.Fatal(err)
	}
	if st.Form.Title != "Draft" {
		t.Errorf("title = %q", st.Form.Title)
	}
	if st.Form.CreatedAt.IsZero() {
		t.Error("missing timestamps were not filled in")
	}
}

func TestEditorImportAssignsID(t *testing.T) {
	svc, _, _ := newEditor()

	st, err := svc.Import(context.Background(), model.Form{Title: "Imported"})
	if err != nil {
		t.Fatal(err)
	}
	if st.Form.ID == "" || st.Form.Questions == nil {
		t.Errorf("form = %+v", st.Form)
	}
	if !st.Form.UpdatedAt.Equal(st.Form.CreatedAt) {
		t.Error("updated_at should default to created_at")
	}
}

func TestEditorPublishedFallsBackToRepository(t *testing.T) {
	svc, repo, cache := newEditor()
	ctx := context.Background()
	repo.Upsert(ctx, &model.Form{ID: "form_p", Title: "Saved", Questions: []model.Question{}})

	f, err := svc.Published(ctx, "form_p")
	if err != nil {
		t.Fatal(err)
	}
	if f.Title != "Saved" {
		t.Errorf("title = %q", f.Title)
	}
	if _, ok := cache.payloads["form_p"]; !ok {
		t.Error("payload cache not warmed")
	}

	if _, err := svc.Published(ctx, "form_none"); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestEditorSubscribe(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())

	var got []FormState
	unsub, done, err := svc.Subscribe(st.Form.ID, func(s FormState) { got = append(got, s) })
	if err != nil {
		t.Fatal(err)
	}

	svc.SetPreviewMode(st.Form.ID, true)
	svc.SetPreviewMode(st.Form.ID, true)
	unsub()
	svc.SetPreviewMode(st.Form.ID, false)

	if len(got) != 1 || !got[0].PreviewMode {
		t.Errorf("notifications = %+v", got)
	}

	select {
	case <-done:
		t.Fatal("done closed while the session is open")
	default:
	}
	if err := svc.CloseSession(context.Background(), st.Form.ID); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("done not closed after CloseSession")
	}

	if _, _, err := svc.Subscribe(st.Form.ID, func(FormState) {}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("subscribe to closed session err = %v", err)
	}
}

func TestEditorOpenFallsBackWhenDraftCacheFails(t *testing.T) {
	svc, repo, cache := newEditor()
	ctx := context.Background()
	repo.Upsert(ctx, &model.Form{ID: "form_s", Title: "Saved", Questions: []model.Question{}})
	cache.draftErr = errors.New("redis: connection refused")

	st, err := svc.Open(ctx, "form_s")
	if err != nil {
		t.Fatalf("open with failing draft cache: %v", err)
	}
	if st.Form.Title != "Saved" {
		t.Errorf("title = %q, want saved version", st.Form.Title)
	}

	if _, err := svc.Open(ctx, "form_missing"); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("open missing err = %v", err)
	}
}

func TestEditorConcurrentQuestionEdits(t *testing.T) {
	const workers = 200
	ctx := context.Background()

	cat := func() model.Question {
		return model.Question{ID: "cat", Body: &model.Categorize{
			Categories: []string{"Fruit", "Veg"},
			Items: []model.CategorizeItem{
				{ID: "i1", Text: "Apple", Category: "Fruit"},
				{ID: "i2", Text: "Carrot", Category: "Veg"},
			},
		}}
	}

	tests := []struct {
		name string
		edit func(svc *EditorService, formID string, i int) error
		want func(t *testing.T, q model.Question)
	}{
		{
			name: "add item",
			edit: func(svc *EditorService, formID string, _ int) error {
				_, err := svc.EditQuestion(formID, "cat", palette.Edit{Op: palette.OpAddItem})
				return err
			},
			want: func(t *testing.T, q model.Question) {
				if n := len(q.Body.(*model.Categorize).Items); n != workers+2 {
					t.Errorf("items = %d, want %d", n, workers+2)
				}
			},
		},
		{
			name: "add category",
			edit: func(svc *EditorService, formID string, _ int) error {
				_, err := svc.EditQuestion(formID, "cat", palette.Edit{Op: palette.OpAddCategory})
				return err
			},
			want: func(t *testing.T, q model.Question) {
				if n := len(q.Body.(*model.Categorize).Categories); n != workers+2 {
					t.Errorf("categories = %d, want %d", n, workers+2)
				}
			},
		},
		{
			name: "edit and retitle",
			edit: func(svc *EditorService, formID string, i int) error {
				if i%2 == 0 {
					_, err := svc.UpdateQuestion(formID, "cat", model.QuestionPatch{Title: strPtr("Sort")})
					return err
				}
				_, err := svc.EditQuestion(formID, "cat", palette.Edit{Op: palette.OpAddItem})
				return err
			},
			want: func(t *testing.T, q model.Question) {
				if n := len(q.Body.(*model.Categorize).Items); n != workers/2+2 {
					t.Errorf("items = %d, want %d", n, workers/2+2)
				}
				if q.Title != "Sort" {
					t.Errorf("title = %q", q.Title)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, cache := newEditor()
			st, _ := svc.Create(ctx)
			formID := st.Form.ID
			if _, err := svc.AddQuestion(formID, cat()); err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := tt.edit(svc, formID, i); err != nil {
						t.Errorf("edit %d: %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			snap, _ := svc.Snapshot(formID)
			q, _ := snap.Form.Question("cat")
			tt.want(t, q)

			// The draft listener ends on the newest document.
			draft, ok := cache.draft(formID)
			if !ok || !reflect.DeepEqual(draft, snap.Form) {
				t.Errorf("draft out of date: updated_at %v, live %v", draft.UpdatedAt, snap.Form.UpdatedAt)
			}
		})
	}
}

func TestEditorConcurrentAddSameID(t *testing.T) {
	svc, _, _ := newEditor()
	st, _ := svc.Create(context.Background())
	formID := st.Form.ID

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		added, dup int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := palette.NewCloze()
			q.ID = "same"
			_, err := svc.AddQuestion(formID, q)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, ErrDuplicateQuestion):
				dup++
			default:
				t.Errorf("unexpected err %v", err)
			}
		}()
	}
	wg.Wait()

	if added != 1 || dup != 49 {
		t.Errorf("added %d, duplicates %d", added, dup)
	}
	snap, _ := svc.Snapshot(formID)
	if len(snap.Form.Questions) != 1 {
		t.Errorf("questions = %d, want 1", len(snap.Form.Questions))
	}
}

func TestEditorList(t *testing.T) {
	svc, repo, _ := newEditor()
	ctx := context.Background()
	for _, id := range []string{"form_a", "form_b", "form_c"} {
		repo.Upsert(ctx, &model.Form{ID: id, Questions: []model.Question{}})
	}

	forms, total, err := svc.List(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(forms) != 1 || forms[0].ID != "form_c" {
		t.Errorf("page 2 = %+v, total %d", forms, total)
	}
}
