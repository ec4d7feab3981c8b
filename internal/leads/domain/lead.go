package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a prospect tracked through the funnel. State and the automation
// flags are only changed by the lifecycle engine.
type Lead struct {
	ID                uuid.UUID
	Email             string
	FirstName         string
	LastName          string
	Phone             *string
	State             State
	AutomationEnabled bool
	HumanRequired     bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AutomationActive reports whether automated outreach may contact the lead.
func (l Lead) AutomationActive() bool {
	return l.AutomationEnabled && !l.HumanRequired
}

// Transition is one entry of the append-only transition log.
type Transition struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	PreviousState State
	NewState      State
	Reason        string
	CreatedAt     time.Time
}
