package notification

import (
	"context"
	"fmt"
	"strings"

	"funnel_backend/internal/email"
	"funnel_backend/internal/notification/outbox"

	"github.com/google/uuid"
)

// Message is an outbound email before it is wrapped in the HTML layout.
// Body is plain text.
type Message struct {
	To       string
	Subject  string
	Body     string
	LeadID   *uuid.UUID
	CTALabel string
	CTAURL   string
}

// Dispatcher hands a message to delivery. Delivery is best-effort: callers
// log a returned error and carry on.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// OutboxWriter is the write side of the notification outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

type emailSendOutboxPayload struct {
	ToEmail  string  `json:"toEmail"`
	Subject  string  `json:"subject"`
	BodyHTML string  `json:"bodyHtml"`
	LeadID   *string `json:"leadId,omitempty"`
}

// OutboxDispatcher stores the rendered message in the notification outbox.
// The scheduler delivers it and retries failed sends.
type OutboxDispatcher struct {
	outbox      OutboxWriter
	programName string
}

func NewOutboxDispatcher(writer OutboxWriter, programName string) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: writer, programName: programName}
}

func (d *OutboxDispatcher) Send(ctx context.Context, msg Message) error {
	html, err := renderHTML(msg, d.programName)
	if err != nil {
		return err
	}

	payload := emailSendOutboxPayload{
		ToEmail:  msg.To,
		Subject:  msg.Subject,
		BodyHTML: html,
	}
	if msg.LeadID != nil {
		leadID := msg.LeadID.String()
		payload.LeadID = &leadID
	}

	if _, err := d.outbox.Insert(ctx, outbox.InsertParams{
		LeadID:   msg.LeadID,
		Kind:     outbox.KindEmail,
		Template: outbox.TemplateEmailSend,
		Payload:  payload,
	}); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// DirectDispatcher sends through the email provider in the caller's goroutine.
// It is used when no Redis is configured for the outbox scheduler.
type DirectDispatcher struct {
	sender      email.Sender
	programName string
}

func NewDirectDispatcher(sender email.Sender, programName string) *DirectDispatcher {
	return &DirectDispatcher{sender: sender, programName: programName}
}

func (d *DirectDispatcher) Send(ctx context.Context, msg Message) error {
	html, err := renderHTML(msg, d.programName)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, msg.To, msg.Subject, html)
}

func renderHTML(msg Message, programName string) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", fmt.Errorf("message has no recipient")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return "", fmt.Errorf("message has no subject")
	}
	return email.RenderMessage(msg.Subject, msg.Body, email.Layout{
		ProgramName: programName,
		CTALabel:    msg.CTALabel,
		CTAURL:      msg.CTAURL,
	})
}

var (
	_ Dispatcher = (*OutboxDispatcher)(nil)
	_ Dispatcher = (*DirectDispatcher)(nil)
)
