// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"funnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadStateAdvanced is published after a forward transition has committed.
type LeadStateAdvanced struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	TransitionID  uuid.UUID `json:"transitionId"`
	PreviousState string    `json:"previousState"`
	NewState      string    `json:"newState"`
	Reason        string    `json:"reason"`
}

func (e LeadStateAdvanced) EventName() string { return "leads.state.advanced" }

// PauseReasonApplication is the pause reason recorded when a lead applies for
// the physical program. ApplicationSubmitted already alerts admins for it.
const PauseReasonApplication = "User applied for Physical Program"

// LeadAutomationPaused is published when a lead is handed to a human.
type LeadAutomationPaused struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadAutomationPaused) EventName() string { return "leads.automation.paused" }

// LeadAutomationResumed is published when an administrator hands a lead back
// to automated outreach.
type LeadAutomationResumed struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadAutomationResumed) EventName() string { return "leads.automation.resumed" }

// =============================================================================
// Funnel Intake Events
// =============================================================================

// ApplicationSubmitted is published after an application has been stored.
type ApplicationSubmitted struct {
	BaseEvent
	ApplicationID uuid.UUID `json:"applicationId"`
	LeadID        uuid.UUID `json:"leadId"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Score         int       `json:"score"`
	Rating        string    `json:"rating"`
}

func (e ApplicationSubmitted) EventName() string { return "funnel.application.submitted" }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler worker when an outbox
// record should be delivered.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
