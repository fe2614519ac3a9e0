package collector

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/model"
)

// Sink receives finished submissions. Its result is logged by the session and
// never reaches the respondent.
type Sink interface {
	Submit(ctx context.Context, sub model.Submission) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sub model.Submission) error

func (f SinkFunc) Submit(ctx context.Context, sub model.Submission) error { return f(ctx, sub) }

// LogSink writes submissions to the log and keeps nothing. Used for previews.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "log_sink").Logger()}
}

func (s *LogSink) Submit(_ context.Context, sub model.Submission) error {
	s.log.Info().
		Str("submission_id", sub.ID).
		Str("form_id", sub.FormID).
		Str("session_id", sub.SessionID).
		Int("answered", len(sub.Responses)).
		Msg("Form submitted")
	return nil
}
