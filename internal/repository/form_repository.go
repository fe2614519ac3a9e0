package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/formcraft/internal/model"
)

// FormRepository stores saved form documents as JSONB.
type FormRepository struct {
	pool *pgxpool.Pool
}

// NewFormRepository creates a new FormRepository.
func NewFormRepository(pool *pgxpool.Pool) *FormRepository {
	return &FormRepository{pool: pool}
}

// Upsert inserts the form or replaces the stored document.
func (r *FormRepository) Upsert(ctx context.Context, f *model.Form) error {
	doc, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO forms (id, title, document, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     document = EXCLUDED.document,
		     updated_at = EXCLUDED.updated_at`,
		f.ID, f.Title, doc, f.CreatedAt, f.UpdatedAt)
	return err
}

// GetByID loads a saved form.
func (r *FormRepository) GetByID(ctx context.Context, id string) (*model.Form, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM forms WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	f := &model.Form{}
	if err := json.Unmarshal(doc, f); err != nil {
		return nil, fmt.Errorf("decode form %s: %w", id, err)
	}
	return f, nil
}

// ListPaginated returns form summaries, most recently updated first.
func (r *FormRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.FormSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forms`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, jsonb_array_length(COALESCE(document->'questions', '[]'::jsonb)),
		        created_at, updated_at
		 FROM forms
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	forms := []model.FormSummary{}
	for rows.Next() {
		var s model.FormSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.QuestionCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		forms = append(forms, s)
	}
	return forms, total, rows.Err()
}
