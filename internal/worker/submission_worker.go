package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/model"
	"github.com/stemsi/formcraft/internal/monitoring"
)

const (
	popTimeout   = time.Second
	retryBackoff = 5 * time.Second
)

// SubmissionWriter persists one submission. inserted is false when the
// session already has a stored submission.
type SubmissionWriter interface {
	Insert(ctx context.Context, s *model.Submission) (inserted bool, err error)
}

// SubmissionWorker consumes persist_submissions_queue and writes submissions to PostgreSQL.
type SubmissionWorker struct {
	rdb     *redis.Client
	writer  SubmissionWriter
	queue   string
	backoff time.Duration
	log     zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(rdb *redis.Client, writer SubmissionWriter, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		rdb:     rdb,
		writer:  writer,
		queue:   config.WorkerKey.PersistSubmissionsQueue,
		backoff: retryBackoff,
		log:     log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled, then drains what is left
// in the queue. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queue).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, popTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Dur("backoff", w.backoff).Msg("Persist error, requeueing")
		w.rdb.RPush(context.Background(), w.queue, result[1])

		select {
		case <-ctx.Done():
		case <-time.After(w.backoff):
		}
	}
}

// handle persists one raw queue entry. Malformed entries are logged and
// dropped; only storage errors are returned for a retry.
func (w *SubmissionWorker) handle(ctx context.Context, raw string) error {
	var sub model.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		monitoring.Submissions.WithLabelValues("failed").Inc()
		w.log.Error().Err(err).Msg("Dropping malformed submission")
		return nil
	}

	inserted, err := w.writer.Insert(ctx, &sub)
	if err != nil {
		return err
	}

	logEvt := w.log.Info()
	stage := "persisted"
	if !inserted {
		logEvt = w.log.Warn()
		stage = "duplicate"
	}
	monitoring.Submissions.WithLabelValues(stage).Inc()
	logEvt.
		Str("submission_id", sub.ID).
		Str("form_id", sub.FormID).
		Str("session_id", sub.SessionID).
		Str("stage", stage).
		Msg("Submission processed")
	return nil
}

// drain persists every remaining entry before shutdown. It stops at the first
// storage error and puts that entry back.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining submissions")
	}
}
