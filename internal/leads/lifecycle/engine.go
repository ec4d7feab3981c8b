// Package lifecycle is the sole authority for moving a lead through the
// funnel and for its automation flags.
//
// Every operation re-reads the lead inside a store transaction that locks
// it, so two concurrent requests for the same lead are evaluated one after
// the other against committed state. Forward moves write the transition log
// entry and the new state in the same transaction.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/ports"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

// maxConflictRetries is how many times a transaction that lost a write
// conflict is re-run before ErrConflict is returned.
const maxConflictRetries = 1

const defaultPauseReason = "Automation paused"

// Engine applies the transition policy against a LifecycleStore.
type Engine struct {
	store   ports.LifecycleStore
	bus     events.Bus
	log     *logger.Logger
	timeout time.Duration
}

// New creates an Engine. bus may be nil, in which case no events are published.
func New(store ports.LifecycleStore, bus events.Bus, cfg config.LifecycleConfig, log *logger.Logger) *Engine {
	return &Engine{
		store:   store,
		bus:     bus,
		log:     log,
		timeout: cfg.GetLifecycleOperationTimeout(),
	}
}

// AdvanceState moves the lead to target if target ranks above its current
// state. An equal rank is a no-op that writes nothing; a lower rank returns
// *domain.InvalidTransitionError. An empty reason is recorded as
// "Transition to <STATE>".
func (e *Engine) AdvanceState(ctx context.Context, leadID uuid.UUID, target domain.State, reason string) (domain.Lead, error) {
	targetRank, err := domain.RankOf(target)
	if err != nil {
		return domain.Lead{}, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.DefaultReason(target)
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	var (
		result    domain.Lead
		committed *domain.Transition
	)
	err = e.runTx(ctx, func(tx ports.LifecycleTx) error {
		committed = nil

		current, err := tx.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		currentRank, err := domain.RankOf(current.State)
		if err != nil {
			return fmt.Errorf("stored state of lead %s: %w", leadID, err)
		}

		if targetRank < currentRank {
			return &domain.InvalidTransitionError{LeadID: leadID, From: current.State, To: target}
		}
		if targetRank == currentRank {
			result = current
			return nil
		}

		entry, err := tx.AppendTransition(ctx, domain.Transition{
			LeadID:        leadID,
			PreviousState: current.State,
			NewState:      target,
			Reason:        reason,
		})
		if err != nil {
			return fmt.Errorf("append transition: %w", err)
		}

		updated, err := tx.UpdateState(ctx, leadID, target)
		if err != nil {
			return fmt.Errorf("update lead state: %w", err)
		}

		result = updated
		committed = &entry
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	if committed != nil {
		e.log.Transition(leadID.String(), string(committed.PreviousState), string(committed.NewState), committed.Reason)
		e.publish(ctx, events.LeadStateAdvanced{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        leadID,
			TransitionID:  committed.ID,
			PreviousState: string(committed.PreviousState),
			NewState:      string(committed.NewState),
			Reason:        committed.Reason,
		})
	}

	return result, nil
}

// PauseAutomation stops automated outreach and flags the lead for a human.
// Pausing an already paused lead returns it unchanged.
func (e *Engine) PauseAutomation(ctx context.Context, leadID uuid.UUID, reason string) (domain.Lead, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultPauseReason
	}

	lead, changed, err := e.setAutomation(ctx, leadID, false, true)
	if err != nil {
		return domain.Lead{}, err
	}

	if changed {
		e.log.Info("lead automation paused", "leadId", leadID, "reason", reason)
		e.publish(ctx, events.LeadAutomationPaused{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Reason:    reason,
		})
	}
	return lead, nil
}

// ResumeAutomation re-enables automated outreach and clears the human flag.
// Callers are responsible for restricting it to administrators.
func (e *Engine) ResumeAutomation(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, changed, err := e.setAutomation(ctx, leadID, true, false)
	if err != nil {
		return domain.Lead{}, err
	}
	if changed {
		e.log.Info("lead automation resumed", "leadId", leadID)
		e.publish(ctx, events.LeadAutomationResumed{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
		})
	}
	return lead, nil
}

// GetLead reads the lead's committed state.
func (e *Engine) GetLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, e.translate(ctx, err)
	}
	return lead, nil
}

// History returns the lead's transition log, oldest first.
func (e *Engine) History(ctx context.Context, leadID uuid.UUID) ([]domain.Transition, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	if _, err := e.store.GetLead(ctx, leadID); err != nil {
		return nil, e.translate(ctx, err)
	}
	entries, err := e.store.ListTransitions(ctx, leadID)
	if err != nil {
		return nil, e.translate(ctx, err)
	}
	return entries, nil
}

func (e *Engine) setAutomation(ctx context.Context, leadID uuid.UUID, enabled, humanRequired bool) (domain.Lead, bool, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	var (
		result  domain.Lead
		changed bool
	)
	err := e.runTx(ctx, func(tx ports.LifecycleTx) error {
		changed = false

		current, err := tx.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		if current.AutomationEnabled == enabled && current.HumanRequired == humanRequired {
			result = current
			return nil
		}

		updated, err := tx.SetAutomation(ctx, leadID, enabled, humanRequired)
		if err != nil {
			return fmt.Errorf("update automation flags: %w", err)
		}
		result = updated
		changed = true
		return nil
	})
	if err != nil {
		return domain.Lead{}, false, err
	}
	return result, changed, nil
}

// runTx runs fn in a transaction, re-running it once after a write conflict.
func (e *Engine) runTx(ctx context.Context, fn func(tx ports.LifecycleTx) error) error {
	for attempt := 0; ; attempt++ {
		err := e.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}

		err = e.translate(ctx, err)
		if errors.Is(err, domain.ErrConflict) && attempt < maxConflictRetries {
			e.log.Debug("lifecycle transaction conflicted; retrying", "attempt", attempt+1, "error", err)
			continue
		}
		return err
	}
}

// translate maps deadline expiry to domain.ErrTimeout. Policy and not found
// errors are returned as they are even when the deadline has also passed.
func (e *Engine) translate(ctx context.Context, err error) error {
	if domain.IsPolicyViolation(err) || errors.Is(err, domain.ErrLeadNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

func (e *Engine) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, event)
}
