package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/internal/notification/outbox"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

const testLeadEmail = "ada@example.com"

type testNotificationConfig struct {
	adminEmail string
}

func (testNotificationConfig) GetProgramName() string { return "LPBA" }
func (testNotificationConfig) GetAutomatedOutreachStates() []string {
	return []string{"NURTURING", "ONLINE_CLIENT", "BOGUS"}
}
func (c testNotificationConfig) GetAdminNotificationEmail() string { return c.adminEmail }

type testDispatcher struct {
	sent []Message
	err  error
}

func (d *testDispatcher) Send(_ context.Context, msg Message) error {
	d.sent = append(d.sent, msg)
	return d.err
}

type testLeads struct {
	lead domain.Lead
	err  error
}

func (l testLeads) GetLead(context.Context, uuid.UUID) (domain.Lead, error) {
	return l.lead, l.err
}

type testTemplates struct {
	byState map[domain.State]repository.Template
}

func (t testTemplates) ResolveForState(_ context.Context, state domain.State) (repository.Template, error) {
	tpl, ok := t.byState[state]
	if !ok {
		return repository.Template{}, resolver.ErrTemplateNotFound
	}
	return tpl, nil
}

type testSender struct {
	calls int
	err   error
}

func (s *testSender) Send(context.Context, string, string, string) error {
	s.calls++
	return s.err
}

type testOutbox struct {
	record     outbox.Record
	processing int
	succeeded  int
	released   int
	failed     []string
	retryAt    time.Time
}

func (o *testOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	if id != o.record.ID {
		return outbox.Record{}, outbox.ErrNotFound
	}
	return o.record, nil
}
func (o *testOutbox) MarkPending(context.Context, uuid.UUID, *string) error {
	o.record.Status = outbox.StatusPending
	o.released++
	return nil
}
func (o *testOutbox) MarkProcessing(context.Context, uuid.UUID) error {
	if o.record.Status != outbox.StatusEnqueued {
		return outbox.ErrNotEnqueued
	}
	o.record.Status = outbox.StatusProcessing
	o.record.Attempts++
	o.processing++
	return nil
}
func (o *testOutbox) MarkSucceeded(context.Context, uuid.UUID) error {
	o.record.Status = outbox.StatusSucceeded
	o.succeeded++
	return nil
}
func (o *testOutbox) MarkFailed(_ context.Context, _ uuid.UUID, lastError string) error {
	o.failed = append(o.failed, lastError)
	return nil
}
func (o *testOutbox) ScheduleRetry(_ context.Context, _ uuid.UUID, runAt time.Time, _ string) error {
	o.record.Status = outbox.StatusPending
	o.record.RunAt = runAt
	o.retryAt = runAt
	return nil
}

func nurturingTemplates() testTemplates {
	state := domain.StateNurturing.String()
	return testTemplates{byState: map[domain.State]repository.Template{
		domain.StateNurturing: {
			ID:           uuid.New(),
			Name:         "Day 1 Value",
			TriggerState: &state,
			Subject:      "Welcome to {program_name}, {first_name}",
			Content:      "Hi {first_name}, here is {missing}.",
			IsActive:     true,
		},
	}}
}

func activeLead() domain.Lead {
	return domain.Lead{
		ID:                uuid.New(),
		Email:             testLeadEmail,
		FirstName:         "Ada",
		State:             domain.StateNurturing,
		AutomationEnabled: true,
	}
}

func newTestModule(dispatcher Dispatcher, sender *testSender, store OutboxStore, leads LeadReader, cfg testNotificationConfig) *Module {
	return New(dispatcher, sender, store, leads, nurturingTemplates(), cfg, logger.New("test"))
}

func TestOutreachStatesIgnoreUnknownValues(t *testing.T) {
	m := newTestModule(&testDispatcher{}, &testSender{}, nil, testLeads{}, testNotificationConfig{})

	got := m.OutreachStates()
	if len(got) != 2 || got[0] != domain.StateNurturing || got[1] != domain.StateOnlineClient {
		t.Fatalf("unexpected outreach states %v", got)
	}
}

func TestRegisterHandlersSubscribesAndLogsOutreachStates(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("production", &buf)
	m := New(&testDispatcher{}, &testSender{}, nil, testLeads{}, nurturingTemplates(), testNotificationConfig{}, log)

	bus := events.NewInMemoryBus(log)
	m.RegisterHandlers(bus)

	if !strings.Contains(buf.String(), `"outreachStates":["NURTURING","ONLINE_CLIENT"]`) {
		t.Fatalf("expected outreach states in registration log, got %s", buf.String())
	}
}

func TestLeadStateAdvancedSendsRenderedTemplate(t *testing.T) {
	dispatcher := &testDispatcher{}
	lead := activeLead()
	m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})

	err := m.Handle(context.Background(), events.LeadStateAdvanced{
		LeadID:        lead.ID,
		PreviousState: "ASSESSMENT_COMPLETED",
		NewState:      "NURTURING",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(dispatcher.sent))
	}

	msg := dispatcher.sent[0]
	if msg.To != testLeadEmail || msg.Subject != "Welcome to LPBA, Ada" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Body != "Hi Ada, here is {missing}." {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if msg.LeadID == nil || *msg.LeadID != lead.ID {
		t.Fatal("expected message to reference the lead")
	}
}

func TestLeadStateAdvancedSkipsPausedLead(t *testing.T) {
	dispatcher := &testDispatcher{}
	lead := activeLead()
	lead.AutomationEnabled = false
	lead.HumanRequired = true
	m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})

	_ = m.Handle(context.Background(), events.LeadStateAdvanced{LeadID: lead.ID, NewState: "NURTURING"})
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no outreach for a paused lead, got %d", len(dispatcher.sent))
	}
}

func TestLeadStateAdvancedSkipsStatesOutsideOutreach(t *testing.T) {
	dispatcher := &testDispatcher{}
	lead := activeLead()
	m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})

	for _, state := range []string{"ASSESSMENT_COMPLETED", "ACCEPTED", "APPLIED_PHYSICAL"} {
		_ = m.Handle(context.Background(), events.LeadStateAdvanced{LeadID: lead.ID, NewState: state})
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected explicit-flow states to be skipped, got %d messages", len(dispatcher.sent))
	}
}

func TestLeadStateAdvancedWithoutTemplateIsNotAnError(t *testing.T) {
	dispatcher := &testDispatcher{}
	lead := activeLead()
	lead.State = domain.StateOnlineClient
	m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})

	if err := m.Handle(context.Background(), events.LeadStateAdvanced{LeadID: lead.ID, NewState: "ONLINE_CLIENT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no message, got %d", len(dispatcher.sent))
	}
}

func TestDispatchFailureIsSwallowed(t *testing.T) {
	dispatcher := &testDispatcher{err: errors.New("smtp down")}
	lead := activeLead()
	m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})

	if err := m.Handle(context.Background(), events.LeadStateAdvanced{LeadID: lead.ID, NewState: "NURTURING"}); err != nil {
		t.Fatalf("dispatch failure must not surface, got %v", err)
	}
}

func TestAdminAlerts(t *testing.T) {
	lead := activeLead()

	t.Run("disabled without admin email", func(t *testing.T) {
		dispatcher := &testDispatcher{}
		m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{})
		_ = m.Handle(context.Background(), events.LeadAutomationPaused{LeadID: lead.ID, Reason: "User applied for Physical Program"})
		_ = m.Handle(context.Background(), events.ApplicationSubmitted{LeadID: lead.ID, Name: "Ada"})
		if len(dispatcher.sent) != 0 {
			t.Fatalf("expected no alerts, got %d", len(dispatcher.sent))
		}
	})

	t.Run("sent to admin", func(t *testing.T) {
		dispatcher := &testDispatcher{}
		m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{adminEmail: "admin@example.com"})
		_ = m.Handle(context.Background(), events.LeadAutomationPaused{LeadID: lead.ID, Reason: "Asked to speak to a coach"})
		_ = m.Handle(context.Background(), events.ApplicationSubmitted{ApplicationID: uuid.New(), LeadID: lead.ID, Name: "Ada", Email: testLeadEmail, Score: 11, Rating: "STRONG"})
		if len(dispatcher.sent) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(dispatcher.sent))
		}
		for _, msg := range dispatcher.sent {
			if msg.To != "admin@example.com" {
				t.Fatalf("alert sent to %q", msg.To)
			}
		}
		if !strings.Contains(dispatcher.sent[0].Body, "Asked to speak to a coach") {
			t.Fatalf("pause alert missing reason: %q", dispatcher.sent[0].Body)
		}
		if !strings.Contains(dispatcher.sent[1].Body, "STRONG") {
			t.Fatalf("application alert missing rating: %q", dispatcher.sent[1].Body)
		}
	})

	t.Run("one alert per application", func(t *testing.T) {
		dispatcher := &testDispatcher{}
		m := newTestModule(dispatcher, &testSender{}, nil, testLeads{lead: lead}, testNotificationConfig{adminEmail: "admin@example.com"})
		_ = m.Handle(context.Background(), events.LeadAutomationPaused{LeadID: lead.ID, Reason: events.PauseReasonApplication})
		_ = m.Handle(context.Background(), events.ApplicationSubmitted{ApplicationID: uuid.New(), LeadID: lead.ID, Name: "Ada", Email: testLeadEmail, Score: 5, Rating: "MODERATE"})
		if len(dispatcher.sent) != 1 {
			t.Fatalf("expected only the application alert, got %d", len(dispatcher.sent))
		}
		if !strings.Contains(dispatcher.sent[0].Subject, "application") {
			t.Fatalf("unexpected alert %q", dispatcher.sent[0].Subject)
		}
	})
}

func emailRecord(t *testing.T, attempts int) outbox.Record {
	t.Helper()
	payload, err := json.Marshal(emailSendOutboxPayload{ToEmail: testLeadEmail, Subject: "Welcome", BodyHTML: "<p>Hi</p>"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.Record{
		ID:       uuid.New(),
		Kind:     outbox.KindEmail,
		Template: outbox.TemplateEmailSend,
		Payload:  payload,
		RunAt:    time.Now().Add(-time.Second),
		Status:   outbox.StatusEnqueued,
		Attempts: attempts,
	}
}

func TestOutboxDueDeliversEmail(t *testing.T) {
	store := &testOutbox{record: emailRecord(t, 0)}
	sender := &testSender{}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: store.record.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 1 || store.processing != 1 || store.succeeded != 1 {
		t.Fatalf("unexpected delivery state: sends=%d processing=%d succeeded=%d", sender.calls, store.processing, store.succeeded)
	}
}

func TestOutboxDueSchedulesRetryOnFailure(t *testing.T) {
	store := &testOutbox{record: emailRecord(t, 1)}
	sender := &testSender{err: errors.New("smtp down")}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	before := time.Now().UTC()
	if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: store.record.ID}); err != nil {
		t.Fatalf("retry is owned by the outbox record, got %v", err)
	}
	if store.retryAt.Before(before.Add(time.Minute)) {
		t.Fatalf("expected second attempt to retry after about a minute, got %s", store.retryAt.Sub(before))
	}
	if len(store.failed) != 0 {
		t.Fatalf("record must not be failed before the last attempt: %v", store.failed)
	}

	// A stale task for the same record finds it pending and must not send.
	if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: store.record.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 1 || store.processing != 1 {
		t.Fatalf("expected a single send before run_at, sends=%d processing=%d", sender.calls, store.processing)
	}
}

func TestOutboxDueReleasesRecordBeforeRunAt(t *testing.T) {
	rec := emailRecord(t, 1)
	rec.RunAt = time.Now().Add(time.Minute)
	store := &testOutbox{record: rec}
	sender := &testSender{}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: rec.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 0 || store.processing != 0 {
		t.Fatal("record must not be delivered before run_at")
	}
	if store.released != 1 || store.record.Status != outbox.StatusPending {
		t.Fatalf("expected record back to pending, released=%d status=%s", store.released, store.record.Status)
	}
}

func TestOutboxDueDeliversOnceForDuplicateTasks(t *testing.T) {
	store := &testOutbox{record: emailRecord(t, 0)}
	sender := &testSender{}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	for i := 0; i < 2; i++ {
		if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: store.record.ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if sender.calls != 1 || store.succeeded != 1 {
		t.Fatalf("expected one delivery, sends=%d succeeded=%d", sender.calls, store.succeeded)
	}
}

func TestOutboxDueFailsAfterLastAttempt(t *testing.T) {
	store := &testOutbox{record: emailRecord(t, maxOutboxRetryAttempts-1)}
	sender := &testSender{err: errors.New("smtp down")}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	_ = m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: store.record.ID})
	if len(store.failed) != 1 || !store.retryAt.IsZero() {
		t.Fatalf("expected record to be failed without retry, failed=%v retryAt=%s", store.failed, store.retryAt)
	}
}

func TestOutboxDueSkipsFinishedRecords(t *testing.T) {
	rec := emailRecord(t, 1)
	rec.Status = outbox.StatusSucceeded
	store := &testOutbox{record: rec}
	sender := &testSender{}
	m := newTestModule(&testDispatcher{}, sender, store, testLeads{}, testNotificationConfig{})

	if err := m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: rec.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 0 || store.processing != 0 {
		t.Fatal("finished record must not be delivered again")
	}
}

func TestOutboxDueRejectsUnsupportedRecord(t *testing.T) {
	rec := emailRecord(t, 0)
	rec.Kind = "sms"
	store := &testOutbox{record: rec}
	m := newTestModule(&testDispatcher{}, &testSender{}, store, testLeads{}, testNotificationConfig{})

	_ = m.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: rec.ID})
	if len(store.failed) != 1 {
		t.Fatalf("expected unsupported record to be failed, got %v", store.failed)
	}
}

func TestComputeOutboxRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: 30 * time.Second},
		{attempt: 2, want: time.Minute},
		{attempt: 4, want: 4 * time.Minute},
		{attempt: 10, want: 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := computeOutboxRetryDelay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %s, got %s", tt.attempt, tt.want, got)
		}
	}
}
