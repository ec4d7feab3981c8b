// Package notification handles all outbound messaging triggered by domain
// events: automated outreach after lifecycle transitions, admin alerts and
// delivery of queued outbox records.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"funnel_backend/internal/email"
	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/internal/notification/outbox"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	invalidOutboxPayloadPrefix = "invalid payload: "
	maxOutboxRetryAttempts     = 5
	outboxRetryBaseDelay       = 30 * time.Second
	outboxRetryMaxDelay        = 30 * time.Minute
)

// LeadReader loads the committed lead.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// TemplateResolver picks the outreach template for a state.
type TemplateResolver interface {
	ResolveForState(ctx context.Context, state domain.State) (repository.Template, error)
}

// OutboxStore is the part of the outbox repository used for delivery.
type OutboxStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

// Module handles all notification-related event subscriptions.
type Module struct {
	dispatcher     Dispatcher
	sender         email.Sender
	outbox         OutboxStore
	leads          LeadReader
	templates      TemplateResolver
	cfg            config.NotificationConfig
	outreachStates map[domain.State]struct{}
	log            *logger.Logger
	now            func() time.Time
}

// New creates the notification module. outboxStore may be nil in processes
// that never deliver outbox records.
func New(dispatcher Dispatcher, sender email.Sender, outboxStore OutboxStore, leads LeadReader, templates TemplateResolver, cfg config.NotificationConfig, log *logger.Logger) *Module {
	states := make(map[domain.State]struct{})
	for _, raw := range cfg.GetAutomatedOutreachStates() {
		state, err := domain.ParseState(raw)
		if err != nil {
			log.Warn("ignoring unknown automated outreach state", "state", raw)
			continue
		}
		states[state] = struct{}{}
	}

	return &Module{
		dispatcher:     dispatcher,
		sender:         sender,
		outbox:         outboxStore,
		leads:          leads,
		templates:      templates,
		cfg:            cfg,
		outreachStates: states,
		log:            log,
		now:            time.Now,
	}
}

// RegisterHandlers subscribes the module to the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadStateAdvanced{}.EventName(), m)
	bus.Subscribe(events.LeadAutomationPaused{}.EventName(), m)
	bus.Subscribe(events.ApplicationSubmitted{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers", "outreachStates", m.OutreachStates())
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadStateAdvanced:
		return m.handleLeadStateAdvanced(ctx, e)
	case events.LeadAutomationPaused:
		return m.handleLeadAutomationPaused(ctx, e)
	case events.ApplicationSubmitted:
		return m.handleApplicationSubmitted(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleLeadStateAdvanced sends the state's template to leads that are still
// under automation. Assessment and acceptance messages are sent by their own
// flows, so only the configured outreach states are handled here.
func (m *Module) handleLeadStateAdvanced(ctx context.Context, e events.LeadStateAdvanced) error {
	state := domain.State(e.NewState)
	if _, ok := m.outreachStates[state]; !ok {
		return nil
	}

	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		m.log.Warn("outreach skipped; lead lookup failed", "leadId", e.LeadID, "error", err)
		return nil
	}
	if !lead.AutomationActive() {
		m.log.Debug("outreach skipped; automation paused", "leadId", lead.ID, "state", state)
		return nil
	}

	tpl, err := m.templates.ResolveForState(ctx, state)
	if errors.Is(err, resolver.ErrTemplateNotFound) {
		m.log.Debug("outreach skipped; no active template", "leadId", lead.ID, "state", state)
		return nil
	}
	if err != nil {
		m.log.Warn("outreach skipped; template lookup failed", "leadId", lead.ID, "state", state, "error", err)
		return nil
	}

	rendered := resolver.RenderTemplate(tpl, map[string]string{
		"first_name":   lead.FirstName,
		"last_name":    lead.LastName,
		"email":        lead.Email,
		"program_name": m.cfg.GetProgramName(),
	})
	subject := rendered.Subject
	if strings.TrimSpace(subject) == "" {
		subject = tpl.Name
	}

	leadID := lead.ID
	m.dispatch(ctx, Message{To: lead.Email, Subject: subject, Body: rendered.Body, LeadID: &leadID})
	return nil
}

func (m *Module) handleLeadAutomationPaused(ctx context.Context, e events.LeadAutomationPaused) error {
	to := m.cfg.GetAdminNotificationEmail()
	if to == "" || e.Reason == events.PauseReasonApplication {
		return nil
	}

	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		m.log.Warn("admin alert skipped; lead lookup failed", "leadId", e.LeadID, "error", err)
		return nil
	}

	name := strings.TrimSpace(lead.FirstName + " " + lead.LastName)
	if name == "" {
		name = lead.Email
	}
	leadID := lead.ID
	m.dispatch(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Lead needs attention: %s", name),
		Body: fmt.Sprintf("Automation was paused for %s <%s>.\n\nReason: %s\nCurrent state: %s",
			name, lead.Email, e.Reason, lead.State),
		LeadID: &leadID,
	})
	return nil
}

func (m *Module) handleApplicationSubmitted(ctx context.Context, e events.ApplicationSubmitted) error {
	to := m.cfg.GetAdminNotificationEmail()
	if to == "" {
		return nil
	}

	leadID := e.LeadID
	m.dispatch(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("New %s application: %s", m.cfg.GetProgramName(), e.Name),
		Body: fmt.Sprintf("%s <%s> applied for the physical program.\n\nScore: %d\nRating: %s\nApplication: %s",
			e.Name, e.Email, e.Score, e.Rating, e.ApplicationID),
		LeadID: &leadID,
	})
	return nil
}

func (m *Module) dispatch(ctx context.Context, msg Message) {
	if err := m.dispatcher.Send(ctx, msg); err != nil {
		m.log.DispatchFailed(msg.To, msg.Subject, err)
	}
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		m.log.Debug("notification outbox repository not configured; skipping outbox due event", "outboxId", e.OutboxID)
		return nil
	}
	m.log.Info("processing outbox due event", "outboxId", e.OutboxID)
	rec, process, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", e.OutboxID, "error", err)
		}
		return err
	}

	if rec.Kind != outbox.KindEmail || rec.Template != outbox.TemplateEmailSend {
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	// Retries are scheduled on the record itself, so the queue never
	// redelivers the task.
	if err := m.processEmailOutbox(ctx, rec); err != nil {
		m.handleOutboxDeliveryError(ctx, rec, err)
		return nil
	}
	m.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
	return nil
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (outbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return outbox.Record{}, false, err
	}
	if rec.Status != outbox.StatusEnqueued {
		m.log.Debug("outbox record not enqueued; skipping", "outboxId", rec.ID.String(), "status", rec.Status)
		return rec, false, nil
	}
	if rec.RunAt.After(m.now()) {
		// Early task: hand the record back so it is claimed again at run_at.
		if err := m.outbox.MarkPending(ctx, rec.ID, rec.LastError); err != nil {
			return outbox.Record{}, false, err
		}
		m.log.Debug("outbox record not due yet; released", "outboxId", rec.ID.String(), "runAt", rec.RunAt)
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		if errors.Is(err, outbox.ErrNotEnqueued) {
			m.log.Debug("outbox record taken by another attempt; skipping", "outboxId", rec.ID.String())
			return rec, false, nil
		}
		return outbox.Record{}, false, err
	}
	m.log.Debug("outbox record marked processing", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
	return rec, true, nil
}

func (m *Module) processEmailOutbox(ctx context.Context, rec outbox.Record) error {
	var payload emailSendOutboxPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}

	if strings.TrimSpace(payload.ToEmail) == "" {
		m.log.Debug("outbox email payload has no recipient; marking succeeded", "outboxId", rec.ID.String())
		_ = m.outbox.MarkSucceeded(ctx, rec.ID)
		return nil
	}
	if strings.TrimSpace(payload.Subject) == "" || strings.TrimSpace(payload.BodyHTML) == "" {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+"subject and bodyHtml are required")
		return nil
	}

	if err := m.sender.Send(ctx, payload.ToEmail, payload.Subject, payload.BodyHTML); err != nil {
		return err
	}

	_ = m.outbox.MarkSucceeded(ctx, rec.ID)
	m.log.Info("email outbox delivered", "outboxId", rec.ID.String(), "subject", payload.Subject)
	return nil
}

func (m *Module) markOutboxUnsupported(ctx context.Context, rec outbox.Record) {
	_ = m.outbox.MarkFailed(ctx, rec.ID, fmt.Sprintf("unsupported outbox record %s/%s", rec.Kind, rec.Template))
	m.log.Warn("unsupported outbox record", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec outbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := m.now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"attempt", attempt,
		"maxAttempts", maxOutboxRetryAttempts,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}

// OutreachStates returns the states that trigger automated outreach, in rank order.
func (m *Module) OutreachStates() []domain.State {
	states := make([]domain.State, 0, len(m.outreachStates))
	for state := range m.outreachStates {
		states = append(states, state)
	}
	slices.SortFunc(states, func(a, b domain.State) int {
		ra, _ := domain.RankOf(a)
		rb, _ := domain.RankOf(b)
		return ra - rb
	})
	return states
}
