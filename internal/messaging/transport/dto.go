package transport

import (
	"time"

	"github.com/google/uuid"
)

type PreviewTemplateRequest struct {
	Name      string            `json:"name" validate:"required,max=200"`
	Variables map[string]string `json:"variables,omitempty" validate:"max=50"`
}

type TemplateResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	TriggerState *string   `json:"triggerState,omitempty"`
	Subject      string    `json:"subject"`
	Content      string    `json:"content"`
	IsActive     bool      `json:"isActive"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type TemplateListResponse struct {
	Items []TemplateResponse `json:"items"`
}

type PreviewTemplateResponse struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html"`
}
