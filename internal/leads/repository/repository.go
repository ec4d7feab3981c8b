package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/ports"
	"funnel_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, email, first_name, last_name, phone, state, automation_enabled, human_required, created_at, updated_at`

// Repository is the Postgres implementation of the leads ports.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ ports.LifecycleStore = (*Repository)(nil)
	_ ports.LeadDirectory  = (*Repository)(nil)
)

// InTx runs fn inside a read-committed transaction. Rows read through
// LockLead are locked with SELECT ... FOR UPDATE until commit or rollback.
func (r *Repository) InTx(ctx context.Context, fn func(tx ports.LifecycleTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapWriteError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&lifecycleTx{tx: tx}); err != nil {
		return mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return r.GetByID(ctx, id)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, err
}

func (r *Repository) ListTransitions(ctx context.Context, leadID uuid.UUID) ([]domain.Transition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, previous_state, new_state, reason, created_at
		FROM lead_transitions
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transitions := make([]domain.Transition, 0)
	for rows.Next() {
		entry, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, entry)
	}
	return transitions, rows.Err()
}

func (r *Repository) UpsertByEmail(ctx context.Context, params ports.UpsertLeadParams) (domain.Lead, bool, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return domain.Lead{}, false, fmt.Errorf("email is required")
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (email, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), leads.first_name),
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), leads.last_name),
			phone = COALESCE(EXCLUDED.phone, leads.phone),
			updated_at = now()
		RETURNING `+leadColumns+`, (xmax = 0) AS inserted`,
		email, params.FirstName, params.LastName, params.Phone,
	)

	var lead domain.Lead
	var state string
	var inserted bool
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.Phone, &state,
		&lead.AutomationEnabled, &lead.HumanRequired, &lead.CreatedAt, &lead.UpdatedAt, &inserted,
	)
	if err != nil {
		return domain.Lead{}, false, err
	}
	lead.State = domain.State(state)
	return lead, inserted, nil
}

func (r *Repository) List(ctx context.Context, params ports.ListLeadsParams) ([]domain.Lead, int, error) {
	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	var state *string
	if params.State != nil {
		value := string(*params.State)
		state = &value
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`, count(*) OVER () AS total
		FROM leads
		WHERE ($1::text IS NULL OR state = $1)
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`, state, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	total := 0
	for rows.Next() {
		var lead domain.Lead
		var stateValue string
		if err := rows.Scan(
			&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.Phone, &stateValue,
			&lead.AutomationEnabled, &lead.HumanRequired, &lead.CreatedAt, &lead.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		lead.State = domain.State(stateValue)
		leads = append(leads, lead)
	}
	return leads, total, rows.Err()
}

func (r *Repository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT state, count(*) FROM leads GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[domain.State(state)] = count
	}
	return counts, rows.Err()
}

// Delete removes a lead together with its transitions, assessments and
// applications (ON DELETE CASCADE).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

type lifecycleTx struct {
	tx pgx.Tx
}

func (t *lifecycleTx) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, err
}

func (t *lifecycleTx) AppendTransition(ctx context.Context, entry domain.Transition) (domain.Transition, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO lead_transitions (lead_id, previous_state, new_state, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, previous_state, new_state, reason, created_at`,
		entry.LeadID, string(entry.PreviousState), string(entry.NewState), entry.Reason,
	)
	return scanTransition(row)
}

func (t *lifecycleTx) UpdateState(ctx context.Context, id uuid.UUID, state domain.State) (domain.Lead, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE leads SET state = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, string(state))
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, err
}

func (t *lifecycleTx) SetAutomation(ctx context.Context, id uuid.UUID, enabled, humanRequired bool) (domain.Lead, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE leads SET automation_enabled = $2, human_required = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, enabled, humanRequired)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, err
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var state string
	if err := row.Scan(
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.Phone, &state,
		&lead.AutomationEnabled, &lead.HumanRequired, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	lead.State = domain.State(state)
	return lead, nil
}

func scanTransition(row pgx.Row) (domain.Transition, error) {
	var entry domain.Transition
	var previous, next string
	if err := row.Scan(&entry.ID, &entry.LeadID, &previous, &next, &entry.Reason, &entry.CreatedAt); err != nil {
		return domain.Transition{}, err
	}
	entry.PreviousState = domain.State(previous)
	entry.NewState = domain.State(next)
	return entry, nil
}

func mapWriteError(err error) error {
	if db.IsWriteConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}
