// Package memory provides an in-process implementation of the leads ports.
// Transactions are serialized by a single mutex, which gives the same
// guarantee as the row lock the Postgres repository takes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// Store keeps leads and transitions in maps. The zero value is not usable;
// call New.
type Store struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]domain.Lead
	transitions []domain.Transition
	now         func() time.Time

	appendErr       error
	updateErr       error
	conflictsToFail int
	beforeCommit    func()
}

var (
	_ ports.LifecycleStore = (*Store)(nil)
	_ ports.LeadDirectory  = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		leads: make(map[uuid.UUID]domain.Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores lead as-is, assigning an id and timestamps when missing.
func (s *Store) Insert(lead domain.Lead) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.State == "" {
		lead.State = domain.StateNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now()
		lead.UpdatedAt = lead.CreatedAt
	}
	s.leads[lead.ID] = lead
	return lead
}

// FailAppend makes every AppendTransition return err until cleared with nil.
func (s *Store) FailAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// FailUpdate makes every UpdateState return err until cleared with nil.
func (s *Store) FailUpdate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// FailCommits makes the next n transactions fail with domain.ErrConflict
// after fn has run.
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictsToFail = n
}

// BeforeCommit registers a hook run inside each transaction just before it
// commits, with the store lock held.
func (s *Store) BeforeCommit(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = hook
}

// InTx runs fn against a staged copy and applies it only if fn succeeds and
// ctx is still live at commit time.
func (s *Store) InTx(ctx context.Context, fn func(tx ports.LifecycleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: make(map[uuid.UUID]domain.Lead)}
	if err := fn(tx); err != nil {
		return err
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.conflictsToFail > 0 {
		s.conflictsToFail--
		return fmt.Errorf("%w: simulated serialization failure", domain.ErrConflict)
	}

	for id, lead := range tx.staged {
		s.leads[id] = lead
	}
	s.transitions = append(s.transitions, tx.appended...)
	return nil
}

func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, nil
}

func (s *Store) ListTransitions(_ context.Context, leadID uuid.UUID) ([]domain.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Transition, 0)
	for _, entry := range s.transitions {
		if entry.LeadID == leadID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *Store) UpsertByEmail(_ context.Context, params ports.UpsertLeadParams) (domain.Lead, bool, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return domain.Lead{}, false, fmt.Errorf("email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, lead := range s.leads {
		if lead.Email != email {
			continue
		}
		if params.FirstName != "" {
			lead.FirstName = params.FirstName
		}
		if params.LastName != "" {
			lead.LastName = params.LastName
		}
		if params.Phone != nil {
			lead.Phone = params.Phone
		}
		lead.UpdatedAt = now
		s.leads[id] = lead
		return lead, false, nil
	}

	lead := domain.Lead{
		ID:                uuid.New(),
		Email:             email,
		FirstName:         params.FirstName,
		LastName:          params.LastName,
		Phone:             params.Phone,
		State:             domain.StateNew,
		AutomationEnabled: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.leads[lead.ID] = lead
	return lead, true, nil
}

func (s *Store) List(_ context.Context, params ports.ListLeadsParams) ([]domain.Lead, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		if params.State != nil && lead.State != *params.State {
			continue
		}
		matched = append(matched, lead)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	start := min(max(params.Offset, 0), total)
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

func (s *Store) CountByState(_ context.Context) (map[domain.State]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.State]int)
	for _, lead := range s.leads {
		counts[lead.State]++
	}
	return counts, nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return domain.ErrLeadNotFound
	}
	delete(s.leads, id)

	kept := s.transitions[:0]
	for _, entry := range s.transitions {
		if entry.LeadID != id {
			kept = append(kept, entry)
		}
	}
	s.transitions = kept
	return nil
}

type memoryTx struct {
	store    *Store
	staged   map[uuid.UUID]domain.Lead
	appended []domain.Transition
}

func (t *memoryTx) read(id uuid.UUID) (domain.Lead, error) {
	if lead, ok := t.staged[id]; ok {
		return lead, nil
	}
	lead, ok := t.store.leads[id]
	if !ok {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return lead, nil
}

func (t *memoryTx) LockLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	return t.read(id)
}

func (t *memoryTx) AppendTransition(_ context.Context, entry domain.Transition) (domain.Transition, error) {
	if t.store.appendErr != nil {
		return domain.Transition{}, t.store.appendErr
	}
	entry.ID = uuid.New()
	entry.CreatedAt = t.store.now()
	t.appended = append(t.appended, entry)
	return entry, nil
}

func (t *memoryTx) UpdateState(_ context.Context, id uuid.UUID, state domain.State) (domain.Lead, error) {
	if t.store.updateErr != nil {
		return domain.Lead{}, t.store.updateErr
	}
	lead, err := t.read(id)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.State = state
	lead.UpdatedAt = t.store.now()
	t.staged[id] = lead
	return lead, nil
}

func (t *memoryTx) SetAutomation(_ context.Context, id uuid.UUID, enabled, humanRequired bool) (domain.Lead, error) {
	lead, err := t.read(id)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.AutomationEnabled = enabled
	lead.HumanRequired = humanRequired
	lead.UpdatedAt = t.store.now()
	t.staged[id] = lead
	return lead, nil
}
