// Package service implements the public intake flows and the admin review of
// physical program applications.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/funnel/repository"
	"funnel_backend/internal/funnel/scoring"
	"funnel_backend/internal/funnel/transport"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/ports"
	msgrepo "funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/internal/notification"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/phone"
	"funnel_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	defaultFirstName = "Leader"

	reasonApplied  = events.PauseReasonApplication
	reasonAccepted = "Application Approved by Admin"
)

// Store is the funnel persistence used by the service.
type Store interface {
	InsertAssessment(ctx context.Context, p repository.InsertAssessmentParams) (repository.Assessment, error)
	InsertApplication(ctx context.Context, p repository.InsertApplicationParams) (uuid.UUID, error)
	GetApplication(ctx context.Context, id uuid.UUID) (repository.Application, error)
	ListApplications(ctx context.Context, p repository.ListApplicationsParams) ([]repository.Application, int, error)
	Approve(ctx context.Context, id uuid.UUID, paymentLink string, expiresAt time.Time) (repository.Application, error)
	Reject(ctx context.Context, id uuid.UUID) (repository.Application, error)
}

// Lifecycle is the part of the lifecycle engine the flows drive.
type Lifecycle interface {
	AdvanceState(ctx context.Context, leadID uuid.UUID, target domain.State, reason string) (domain.Lead, error)
	PauseAutomation(ctx context.Context, leadID uuid.UUID, reason string) (domain.Lead, error)
}

// LeadDirectory creates lead contact records on intake.
type LeadDirectory interface {
	UpsertByEmail(ctx context.Context, params ports.UpsertLeadParams) (domain.Lead, bool, error)
}

type TemplateResolver interface {
	ResolveForState(ctx context.Context, state domain.State) (msgrepo.Template, error)
}

// Deps groups the collaborators of the service.
type Deps struct {
	Store      Store
	Leads      LeadDirectory
	Lifecycle  Lifecycle
	Templates  TemplateResolver
	Dispatcher notification.Dispatcher
	Bus        events.Bus
	Config     config.FunnelConfig
	Log        *logger.Logger
}

type Service struct {
	store      Store
	leads      LeadDirectory
	lifecycle  Lifecycle
	templates  TemplateResolver
	dispatcher notification.Dispatcher
	bus        events.Bus
	cfg        config.FunnelConfig
	scorer     *scoring.Scorer
	log        *logger.Logger
	now        func() time.Time
}

func New(deps Deps) *Service {
	return &Service{
		store:      deps.Store,
		leads:      deps.Leads,
		lifecycle:  deps.Lifecycle,
		templates:  deps.Templates,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		cfg:        deps.Config,
		scorer:     scoring.New(deps.Config),
		log:        deps.Log,
		now:        time.Now,
	}
}

// SubmitAssessment scores the answers, records the lead and the assessment,
// moves the lead to ASSESSMENT_COMPLETED and sends the result email.
func (s *Service) SubmitAssessment(ctx context.Context, req transport.SubmitAssessmentRequest) (transport.AssessmentResponse, error) {
	lead, err := s.upsertLead(ctx, req.Email, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		return transport.AssessmentResponse{}, err
	}

	result := s.scorer.Assessment(req.Answers)
	assessment, err := s.store.InsertAssessment(ctx, repository.InsertAssessmentParams{
		LeadID:         lead.ID,
		Answers:        req.Answers,
		Score:          result.Score,
		Result:         result.Result,
		Recommendation: result.Recommendation,
	})
	if err != nil {
		return transport.AssessmentResponse{}, err
	}

	s.advance(ctx, lead.ID, domain.StateAssessmentCompleted, "Assessment Result: "+result.Result)

	vars := map[string]string{
		"first_name":     firstNameOf(lead),
		"result":         result.Result,
		"recommendation": result.Recommendation,
		"program_name":   s.cfg.GetProgramName(),
	}
	body := s.renderForState(ctx, domain.StateAssessmentCompleted, vars, fmt.Sprintf(
		"Thank you for taking the %s assessment.\n\nYour result: %s\nRecommended path: %s",
		s.cfg.GetProgramName(), result.Result, result.Recommendation,
	))
	s.dispatch(ctx, notification.Message{
		To:      lead.Email,
		Subject: fmt.Sprintf("Your %s Assessment Result: %s", s.cfg.GetProgramName(), result.Result),
		Body:    body,
		LeadID:  &lead.ID,
	})

	return transport.AssessmentResponse{
		LeadID:         lead.ID,
		AssessmentID:   assessment.ID,
		Score:          result.Score,
		Result:         result.Result,
		Recommendation: result.Recommendation,
	}, nil
}

// SubmitApplication records a physical program application. The lead moves
// to APPLIED_PHYSICAL and automation pauses so a person follows up.
func (s *Service) SubmitApplication(ctx context.Context, req transport.SubmitApplicationRequest) (transport.ApplicationSubmittedResponse, error) {
	lead, err := s.upsertLead(ctx, req.Email, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		return transport.ApplicationSubmittedResponse{}, err
	}

	commitment := sanitize.Text(req.Commitment)
	experience := sanitize.Text(req.Experience)
	goals := sanitize.Text(req.Goals)
	score := s.scorer.Application(commitment, experience, goals)

	appID, err := s.store.InsertApplication(ctx, repository.InsertApplicationParams{
		LeadID:     lead.ID,
		Program:    sanitize.Text(req.Program),
		Commitment: commitment,
		Experience: experience,
		Goals:      goals,
		Score:      score.Score,
		Rating:     string(score.Rating),
	})
	if err != nil {
		return transport.ApplicationSubmittedResponse{}, err
	}

	if s.advance(ctx, lead.ID, domain.StateAppliedPhysical, "Application Submitted. Score: "+string(score.Rating)) {
		if _, err := s.lifecycle.PauseAutomation(ctx, lead.ID, reasonApplied); err != nil {
			s.log.Warn("pause automation failed", "leadId", lead.ID, "error", err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ApplicationSubmitted{
			BaseEvent:     events.NewBaseEvent(),
			ApplicationID: appID,
			LeadID:        lead.ID,
			Email:         lead.Email,
			Name:          strings.TrimSpace(lead.FirstName + " " + lead.LastName),
			Score:         score.Score,
			Rating:        string(score.Rating),
		})
	}

	return transport.ApplicationSubmittedResponse{
		ApplicationID: appID,
		LeadID:        lead.ID,
		Status:        repository.StatusPending,
	}, nil
}

func (s *Service) ListApplications(ctx context.Context, req transport.ListApplicationsRequest) (transport.ApplicationListResponse, error) {
	params := repository.ListApplicationsParams{Limit: req.Limit, Offset: req.Offset}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		params.Status = &status
	}

	apps, total, err := s.store.ListApplications(ctx, params)
	if err != nil {
		return transport.ApplicationListResponse{}, err
	}

	items := make([]transport.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, toApplicationResponse(app))
	}
	return transport.ApplicationListResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

// AcceptApplication approves a pending application, issues its payment link,
// moves the lead to ACCEPTED and emails the acceptance.
func (s *Service) AcceptApplication(ctx context.Context, id uuid.UUID) (transport.ApplicationResponse, error) {
	link := PaymentLink(s.cfg.GetPaymentBaseURL(), id)
	expiresAt := s.now().UTC().Add(s.cfg.GetPaymentLinkTTL())
	app, err := s.store.Approve(ctx, id, link, expiresAt)
	if err != nil {
		return transport.ApplicationResponse{}, mapError(err)
	}

	s.advance(ctx, app.LeadID, domain.StateAccepted, reasonAccepted)

	firstName := strings.TrimSpace(app.LeadFirstName)
	if firstName == "" {
		firstName = defaultFirstName
	}
	programName := s.acceptedProgram(app)
	vars := map[string]string{
		"first_name":   firstName,
		"program_name": programName,
		"payment_link": link,
	}
	body := s.renderForState(ctx, domain.StateAccepted, vars, fmt.Sprintf(
		"You have been accepted into %s.\n\nComplete your payment to secure your spot:\n%s",
		programName, link,
	))
	s.dispatch(ctx, notification.Message{
		To:       app.LeadEmail,
		Subject:  fmt.Sprintf("Congratulations! You've been accepted to %s", programName),
		Body:     body,
		LeadID:   &app.LeadID,
		CTALabel: "Secure Your Spot",
		CTAURL:   link,
	})

	return toApplicationResponse(app), nil
}

// acceptedProgram is the program the applicant named, or the configured
// program name when the application left it blank.
func (s *Service) acceptedProgram(app repository.Application) string {
	if program := strings.TrimSpace(app.Program); program != "" {
		return program
	}
	return s.cfg.GetProgramName()
}

// RejectApplication closes a pending application without touching the lead.
func (s *Service) RejectApplication(ctx context.Context, id uuid.UUID) (transport.ApplicationResponse, error) {
	app, err := s.store.Reject(ctx, id)
	if err != nil {
		return transport.ApplicationResponse{}, mapError(err)
	}
	return toApplicationResponse(app), nil
}

// PaymentLink builds the checkout URL for an application.
func PaymentLink(baseURL string, applicationID uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + "/pay/" + applicationID.String()
}

func (s *Service) upsertLead(ctx context.Context, email, firstName, lastName, rawPhone string) (domain.Lead, error) {
	params := ports.UpsertLeadParams{
		Email:     sanitize.Email(email),
		FirstName: sanitize.Name(firstName),
		LastName:  sanitize.Name(lastName),
	}
	if normalized := phone.NormalizeE164(rawPhone); normalized != "" {
		params.Phone = &normalized
	}

	lead, created, err := s.leads.UpsertByEmail(ctx, params)
	if err != nil {
		return domain.Lead{}, err
	}
	if created {
		s.log.Info("lead created", "leadId", lead.ID)
	}
	return lead, nil
}

// advance is a best-effort transition. Failures are logged and reported as
// false so the calling flow can carry on.
func (s *Service) advance(ctx context.Context, leadID uuid.UUID, target domain.State, reason string) bool {
	if _, err := s.lifecycle.AdvanceState(ctx, leadID, target, reason); err != nil {
		s.log.TransitionSkipped(leadID.String(), target.String(), err)
		return false
	}
	return true
}

func (s *Service) renderForState(ctx context.Context, state domain.State, vars map[string]string, fallback string) string {
	tpl, err := s.templates.ResolveForState(ctx, state)
	if err != nil {
		if !errors.Is(err, resolver.ErrTemplateNotFound) {
			s.log.Warn("template lookup failed", "state", state, "error", err)
		}
		return fallback
	}
	return resolver.Render(tpl.Content, vars)
}

func (s *Service) dispatch(ctx context.Context, msg notification.Message) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.log.DispatchFailed(msg.To, msg.Subject, err)
	}
}

func firstNameOf(lead domain.Lead) string {
	if name := strings.TrimSpace(lead.FirstName); name != "" {
		return strings.Fields(name)[0]
	}
	return defaultFirstName
}

func toApplicationResponse(app repository.Application) transport.ApplicationResponse {
	return transport.ApplicationResponse{
		ID:                   app.ID,
		LeadID:               app.LeadID,
		Email:                app.LeadEmail,
		FirstName:            app.LeadFirstName,
		LastName:             app.LeadLastName,
		Program:              app.Program,
		Commitment:           app.Commitment,
		Experience:           app.Experience,
		Goals:                app.Goals,
		Score:                app.Score,
		Rating:               app.Rating,
		Status:               app.Status,
		PaymentLink:          app.PaymentLink,
		PaymentLinkExpiresAt: app.PaymentLinkExpiresAt,
		ReviewedAt:           app.ReviewedAt,
		CreatedAt:            app.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "application not found", err)
	case errors.Is(err, repository.ErrNotPending):
		return apperr.Wrap(apperr.KindConflict, "application has already been reviewed", err)
	default:
		return err
	}
}
