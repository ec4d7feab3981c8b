package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no template has the requested name.
var ErrNotFound = errors.New("message template not found")

const templateColumns = `id, name, trigger_state, subject, content, is_active, created_at, updated_at`

// Template is an outreach message. TriggerState is nil for templates that are
// only sent by explicit flows or previewed by name.
type Template struct {
	ID           uuid.UUID
	Name         string
	TriggerState *string
	Subject      string
	Content      string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UpsertTemplateParams struct {
	Name         string
	TriggerState *string
	Subject      string
	Content      string
	IsActive     bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveByTriggerState returns active templates for the state ordered by
// name, then id.
func (r *Repository) ListActiveByTriggerState(ctx context.Context, state string) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM message_templates
		WHERE trigger_state = $1 AND is_active
		ORDER BY name ASC, id ASC`, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

func (r *Repository) GetByName(ctx context.Context, name string) (Template, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE name = $1`, name)
	tpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return tpl, err
}

func (r *Repository) List(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM message_templates ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// Upsert inserts or replaces a template by name. inserted reports whether the
// name was new.
func (r *Repository) Upsert(ctx context.Context, params UpsertTemplateParams) (Template, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO message_templates (name, trigger_state, subject, content, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			trigger_state = EXCLUDED.trigger_state,
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+templateColumns+`, (xmax = 0) AS inserted`,
		params.Name, params.TriggerState, params.Subject, params.Content, params.IsActive,
	)

	var tpl Template
	var inserted bool
	if err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.TriggerState, &tpl.Subject, &tpl.Content,
		&tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt, &inserted,
	); err != nil {
		return Template{}, false, err
	}
	return tpl, inserted, nil
}

func collectTemplates(rows pgx.Rows) ([]Template, error) {
	templates := make([]Template, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func scanTemplate(row pgx.Row) (Template, error) {
	var tpl Template
	err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.TriggerState, &tpl.Subject, &tpl.Content,
		&tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	return tpl, err
}
