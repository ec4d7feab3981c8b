// Package ports defines the storage contracts of the leads module so the
// lifecycle engine and intake flows can run against Postgres or memory.
package ports

import (
	"context"

	"funnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LifecycleStore owns the transaction boundary for lifecycle operations.
type LifecycleStore interface {
	// InTx runs fn in a single transaction. If fn returns an error nothing
	// it wrote is kept. Write conflicts surface as domain.ErrConflict.
	InTx(ctx context.Context, fn func(tx LifecycleTx) error) error
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListTransitions(ctx context.Context, leadID uuid.UUID) ([]domain.Transition, error)
}

// LifecycleTx is the transaction-scoped view of leads and the transition log.
type LifecycleTx interface {
	// LockLead reads the lead and holds it until the transaction ends, so a
	// concurrent transaction locking the same lead waits for this one.
	LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	AppendTransition(ctx context.Context, entry domain.Transition) (domain.Transition, error)
	UpdateState(ctx context.Context, id uuid.UUID, state domain.State) (domain.Lead, error)
	SetAutomation(ctx context.Context, id uuid.UUID, enabled, humanRequired bool) (domain.Lead, error)
}

// UpsertLeadParams carries the contact fields owned by intake.
type UpsertLeadParams struct {
	Email     string
	FirstName string
	LastName  string
	Phone     *string
}

// ListLeadsParams filters the admin lead list.
type ListLeadsParams struct {
	State  *domain.State
	Limit  int
	Offset int
}

// LeadDirectory manages the contact side of leads. It never changes state or
// the automation flags.
type LeadDirectory interface {
	// UpsertByEmail creates a NEW lead or refreshes the contact fields of an
	// existing one. created reports whether a row was inserted.
	UpsertByEmail(ctx context.Context, params UpsertLeadParams) (lead domain.Lead, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListLeadsParams) ([]domain.Lead, int, error)
	CountByState(ctx context.Context) (map[domain.State]int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
