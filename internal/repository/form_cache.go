package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/model"
)

// FormCache keeps unsaved drafts and the respondent payload of saved forms in Redis.
type FormCache struct {
	rdb      *redis.Client
	draftTTL time.Duration
}

// NewFormCache creates a FormCache. Drafts expire after draftTTL of inactivity.
func NewFormCache(rdb *redis.Client, draftTTL time.Duration) *FormCache {
	return &FormCache{rdb: rdb, draftTTL: draftTTL}
}

// SaveDraft writes the current document of an editing session.
func (c *FormCache) SaveDraft(ctx context.Context, f *model.Form) error {
	return c.set(ctx, config.CacheKey.FormDraftKey(f.ID), f, c.draftTTL)
}

// GetDraft returns the cached draft or ErrNotFound.
func (c *FormCache) GetDraft(ctx context.Context, formID string) (*model.Form, error) {
	return c.get(ctx, config.CacheKey.FormDraftKey(formID))
}

// DeleteDraft drops the draft of a closed session.
func (c *FormCache) DeleteDraft(ctx context.Context, formID string) error {
	return c.rdb.Del(ctx, config.CacheKey.FormDraftKey(formID)).Err()
}

// SetPayload caches a saved form for respondents. It lives until replaced.
func (c *FormCache) SetPayload(ctx context.Context, f *model.Form) error {
	return c.set(ctx, config.CacheKey.FormPayloadKey(f.ID), f, 0)
}

// GetPayload returns the cached respondent payload or ErrNotFound.
func (c *FormCache) GetPayload(ctx context.Context, formID string) (*model.Form, error) {
	return c.get(ctx, config.CacheKey.FormPayloadKey(formID))
}

func (c *FormCache) set(ctx context.Context, key string, f *model.Form, ttl time.Duration) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *FormCache) get(ctx context.Context, key string) (*model.Form, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f := &model.Form{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("decode cached form: %w", err)
	}
	return f, nil
}
