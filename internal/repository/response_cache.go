package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/model"
)

const (
	metaFormID      = "form_id"
	metaPreview     = "preview"
	metaSubmittedAt = "submitted_at"
)

// CachedResponse is a respondent session as stored between requests.
type CachedResponse struct {
	SessionID   string
	FormID      string
	Preview     bool
	Responses   model.ResponseSet
	Submitted   bool
	SubmittedAt time.Time
}

// ResponseCache keeps respondent answers in a Redis hash keyed by question id,
// next to a meta hash with the form id and submit state.
type ResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResponseCache creates a ResponseCache. Entries expire after ttl of inactivity.
func NewResponseCache(rdb *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

// Start registers a new session. Preview sessions fill the live draft of a form.
func (c *ResponseCache) Start(ctx context.Context, sessionID, formID string, preview bool) error {
	metaKey := config.CacheKey.ResponseMetaKey(sessionID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, metaKey, metaFormID, formID, metaPreview, strconv.FormatBool(preview))
		pipe.Expire(ctx, metaKey, c.ttl)
		return nil
	})
	return err
}

// SaveAnswer replaces the answer of one question.
func (c *ResponseCache) SaveAnswer(ctx context.Context, sessionID, questionID string, a model.Answer) error {
	typed, err := model.EncodeAnswer(questionID, a)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	raw, err := json.Marshal(typed)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	answersKey := config.CacheKey.ResponseAnswersKey(sessionID)
	metaKey := config.CacheKey.ResponseMetaKey(sessionID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, answersKey, questionID, raw)
		pipe.Expire(ctx, answersKey, c.ttl)
		pipe.Expire(ctx, metaKey, c.ttl)
		return nil
	})
	return err
}

// MarkSubmitted records the submit time of a session.
func (c *ResponseCache) MarkSubmitted(ctx context.Context, sessionID string, at time.Time) error {
	return c.rdb.HSet(ctx, config.CacheKey.ResponseMetaKey(sessionID),
		metaSubmittedAt, strconv.FormatInt(at.UnixMilli(), 10)).Err()
}

// Load returns a cached session or ErrNotFound.
func (c *ResponseCache) Load(ctx context.Context, sessionID string) (*CachedResponse, error) {
	meta, err := c.rdb.HGetAll(ctx, config.CacheKey.ResponseMetaKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	formID, ok := meta[metaFormID]
	if !ok {
		return nil, ErrNotFound
	}

	out := &CachedResponse{SessionID: sessionID, FormID: formID, Responses: model.ResponseSet{}}
	out.Preview, _ = strconv.ParseBool(meta[metaPreview])
	if v, ok := meta[metaSubmittedAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}
		out.Submitted = true
		out.SubmittedAt = time.UnixMilli(ms).UTC()
	}

	answers, err := c.rdb.HGetAll(ctx, config.CacheKey.ResponseAnswersKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for qid, raw := range answers {
		var typed model.TypedAnswer
		if err := json.Unmarshal([]byte(raw), &typed); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", qid, err)
		}
		a, err := typed.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", qid, err)
		}
		out.Responses[qid] = a
	}
	return out, nil
}
