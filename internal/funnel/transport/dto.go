package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type SubmitAssessmentRequest struct {
	Email     string         `json:"email" validate:"required,email,max=254"`
	FirstName string         `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string         `json:"lastName" validate:"max=100"`
	Phone     string         `json:"phone,omitempty" validate:"max=32"`
	Answers   map[string]int `json:"answers" validate:"required,min=1,max=50,dive,keys,min=1,max=100,endkeys,min=0,max=10"`
}

type SubmitApplicationRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	FirstName  string `json:"firstName" validate:"required,min=1,max=100"`
	LastName   string `json:"lastName" validate:"max=100"`
	Phone      string `json:"phone" validate:"required,min=5,max=32"`
	Program    string `json:"program" validate:"max=200"`
	Commitment string `json:"commitment" validate:"required,max=2000"`
	Experience string `json:"experience" validate:"max=4000"`
	Goals      string `json:"goals" validate:"max=4000"`
}

type ListApplicationsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED EXPIRED pending approved rejected expired"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"min=0"`
}

// Response DTOs
type AssessmentResponse struct {
	LeadID         uuid.UUID `json:"leadId"`
	AssessmentID   uuid.UUID `json:"assessmentId"`
	Score          int       `json:"score"`
	Result         string    `json:"result"`
	Recommendation string    `json:"recommendation"`
}

type ApplicationSubmittedResponse struct {
	ApplicationID uuid.UUID `json:"applicationId"`
	LeadID        uuid.UUID `json:"leadId"`
	Status        string    `json:"status"`
}

type ApplicationResponse struct {
	ID                   uuid.UUID  `json:"id"`
	LeadID               uuid.UUID  `json:"leadId"`
	Email                string     `json:"email"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	Program              string     `json:"program,omitempty"`
	Commitment           string     `json:"commitment"`
	Experience           string     `json:"experience"`
	Goals                string     `json:"goals"`
	Score                int        `json:"score"`
	Rating               string     `json:"rating"`
	Status               string     `json:"status"`
	PaymentLink          *string    `json:"paymentLink,omitempty"`
	PaymentLinkExpiresAt *time.Time `json:"paymentLinkExpiresAt,omitempty"`
	ReviewedAt           *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type ApplicationListResponse struct {
	Items  []ApplicationResponse `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}
