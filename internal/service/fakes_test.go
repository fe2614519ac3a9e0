package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/repository"
)

type memFormRepo struct {
	mu    sync.Mutex
	forms map[string]model.Form
}

func newMemFormRepo() *memFormRepo { return &memFormRepo{forms: map[string]model.Form{}} }

func (r *memFormRepo) Upsert(_ context.Context, f *model.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[f.ID] = f.Clone()
	return nil
}

func (r *memFormRepo) GetByID(_ context.Context, id string) (*model.Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := f.Clone()
	return &cp, nil
}

func (r *memFormRepo) ListPaginated(_ context.Context, limit, offset int) ([]model.FormSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []model.FormSummary{}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		f := r.forms[ids[i]]
		out = append(out, f.Summary())
	}
	return out, len(ids), nil
}

type memFormCache struct {
	mu       sync.Mutex
	drafts   map[string]model.Form
	payloads map[string]model.Form
	writes   int
	draftErr error
}

func newMemFormCache() *memFormCache {
	return &memFormCache{drafts: map[string]model.Form{}, payloads: map[string]model.Form{}}
}

func (c *memFormCache) SaveDraft(_ context.Context, f *model.Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts[f.ID] = f.Clone()
	c.writes++
	return nil
}

func (c *memFormCache) GetDraft(_ context.Context, id string) (*model.Form, error) {
	if c.draftErr != nil {
		return nil, c.draftErr
	}
	return c.get(c.drafts, id)
}

func (c *memFormCache) draft(id string) (model.Form, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.drafts[id]
	return f, ok
}

func (c *memFormCache) DeleteDraft(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, id)
	return nil
}

func (c *memFormCache) SetPayload(_ context.Context, f *model.Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[f.ID] = f.Clone()
	return nil
}

func (c *memFormCache) GetPayload(_ context.Context, id string) (*model.Form, error) {
	return c.get(c.payloads, id)
}

func (c *memFormCache) get(m map[string]model.Form, id string) (*model.Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := f.Clone()
	return &cp, nil
}

type memResponseCache struct {
	mu       sync.Mutex
	sessions map[string]*repository.CachedResponse
	markErr  error
}

func newMemResponseCache() *memResponseCache {
	return &memResponseCache{sessions: map[string]*repository.CachedResponse{}}
}

func (c *memResponseCache) Start(_ context.Context, sessionID, formID string, preview bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = &repository.CachedResponse{
		SessionID: sessionID,
		FormID:    formID,
		Preview:   preview,
		Responses: model.ResponseSet{},
	}
	return nil
}

func (c *memResponseCache) SaveAnswer(_ context.Context, sessionID, questionID string, a model.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		s.Responses[questionID] = a.CloneAnswer()
	}
	return nil
}

func (c *memResponseCache) MarkSubmitted(_ context.Context, sessionID string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markErr != nil {
		return c.markErr
	}
	if s, ok := c.sessions[sessionID]; ok {
		s.Submitted = true
		s.SubmittedAt = at
	}
	return nil
}

func (c *memResponseCache) Load(_ context.Context, sessionID string) (*repository.CachedResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	cp.Responses = s.Responses.Clone()
	return &cp, nil
}

type memSubmissions struct {
	mu   sync.Mutex
	subs []model.Submission
}

func (m *memSubmissions) Submit(_ context.Context, sub model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
	return nil
}

func (m *memSubmissions) ListByForm(_ context.Context, formID string, limit, offset int) ([]model.Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.Submission
	for _, s := range m.subs {
		if s.FormID == formID {
			matched = append(matched, s)
		}
	}
	out := []model.Submission{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		out = append(out, matched[i])
	}
	return out, len(matched), nil
}

func (m *memSubmissions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
