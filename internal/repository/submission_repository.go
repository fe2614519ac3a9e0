package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/formcraft/internal/model"
)

// SubmissionRepository stores submitted responses.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Insert stores a submission. A second submission for the same session is
// ignored; inserted reports whether a row was written.
func (r *SubmissionRepository) Insert(ctx context.Context, s *model.Submission) (inserted bool, err error) {
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return false, fmt.Errorf("marshal responses: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO submissions (id, form_id, session_id, responses, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO NOTHING`,
		s.ID, s.FormID, s.SessionID, responses, s.SubmittedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByForm returns the submissions of a form, newest first.
func (r *SubmissionRepository) ListByForm(ctx context.Context, formID string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE form_id = $1`, formID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, form_id, session_id, responses, submitted_at
		 FROM submissions
		 WHERE form_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`, formID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var (
			s   model.Submission
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.FormID, &s.SessionID, &raw, &s.SubmittedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(raw, &s.Responses); err != nil {
			return nil, 0, fmt.Errorf("decode submission %s: %w", s.ID, err)
		}
		subs = append(subs, s)
	}
	return subs, total, rows.Err()
}
