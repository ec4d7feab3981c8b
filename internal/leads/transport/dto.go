package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type ListLeadsRequest struct {
	State  string `form:"state" validate:"max=40"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"min=0"`
}

type AdvanceStateRequest struct {
	State  string `json:"state" validate:"required,max=40"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type PauseAutomationRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Response DTOs
type LeadResponse struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Phone             *string   `json:"phone,omitempty"`
	State             string    `json:"state"`
	Phase             string    `json:"phase"`
	AutomationEnabled bool      `json:"automationEnabled"`
	HumanRequired     bool      `json:"humanRequired"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type TransitionResponse struct {
	ID            uuid.UUID `json:"id"`
	PreviousState string    `json:"previousState"`
	NewState      string    `json:"newState"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}

type LeadDetailResponse struct {
	LeadResponse
	History []TransitionResponse `json:"history"`
}

type LeadListResponse struct {
	Items  []LeadResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type StateCount struct {
	State string `json:"state"`
	Rank  int    `json:"rank"`
	Count int    `json:"count"`
}

type PhaseCount struct {
	Phase string `json:"phase"`
	Count int    `json:"count"`
}

type FunnelSummaryResponse struct {
	Total   int          `json:"total"`
	ByState []StateCount `json:"byState"`
	ByPhase []PhaseCount `json:"byPhase"`
}
