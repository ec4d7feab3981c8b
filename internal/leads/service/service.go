// Package service exposes the admin lead operations on top of the lifecycle
// engine and the lead directory.
package service

import (
	"context"
	"errors"
	"strings"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/lifecycle"
	"funnel_backend/internal/leads/ports"
	"funnel_backend/internal/leads/transport"
	"funnel_backend/platform/apperr"

	"github.com/google/uuid"
)

const defaultListLimit = 50

// Service handles admin lead queries and manual lifecycle actions.
type Service struct {
	engine    *lifecycle.Engine
	directory ports.LeadDirectory
}

// New creates a new leads service.
func New(engine *lifecycle.Engine, directory ports.LeadDirectory) *Service {
	return &Service{engine: engine, directory: directory}
}

func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	params := ports.ListLeadsParams{Limit: req.Limit, Offset: req.Offset}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if strings.TrimSpace(req.State) != "" {
		state, err := domain.ParseState(req.State)
		if err != nil {
			return transport.LeadListResponse{}, mapError(err)
		}
		params.State = &state
	}

	leads, total, err := s.directory.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, ToLeadResponse(lead))
	}
	return transport.LeadListResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadDetailResponse, error) {
	lead, err := s.engine.GetLead(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, mapError(err)
	}
	entries, err := s.engine.History(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, mapError(err)
	}

	history := make([]transport.TransitionResponse, 0, len(entries))
	for _, entry := range entries {
		history = append(history, transport.TransitionResponse{
			ID:            entry.ID,
			PreviousState: entry.PreviousState.String(),
			NewState:      entry.NewState.String(),
			Reason:        entry.Reason,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return transport.LeadDetailResponse{LeadResponse: ToLeadResponse(lead), History: history}, nil
}

// Advance is the manual override of AdvanceState. Unlike the intake flows it
// surfaces policy violations to the caller.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, req transport.AdvanceStateRequest) (transport.LeadResponse, error) {
	target, err := domain.ParseState(req.State)
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}
	lead, err := s.engine.AdvanceState(ctx, id, target, req.Reason)
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}
	return ToLeadResponse(lead), nil
}

func (s *Service) Pause(ctx context.Context, id uuid.UUID, req transport.PauseAutomationRequest) (transport.LeadResponse, error) {
	lead, err := s.engine.PauseAutomation(ctx, id, req.Reason)
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}
	return ToLeadResponse(lead), nil
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.engine.ResumeAutomation(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}
	return ToLeadResponse(lead), nil
}

// Summary counts leads per state and per phase for the dashboard funnel.
// Every state and phase is listed, including those with no leads.
func (s *Service) Summary(ctx context.Context) (transport.FunnelSummaryResponse, error) {
	counts, err := s.directory.CountByState(ctx)
	if err != nil {
		return transport.FunnelSummaryResponse{}, err
	}

	phaseCounts := make(map[domain.Phase]int)
	resp := transport.FunnelSummaryResponse{
		ByState: make([]transport.StateCount, 0, len(domain.States())),
		ByPhase: make([]transport.PhaseCount, 0, len(domain.Phases())),
	}
	for _, state := range domain.States() {
		rank, _ := domain.RankOf(state)
		phase, _ := domain.PhaseOf(state)
		count := counts[state]

		resp.ByState = append(resp.ByState, transport.StateCount{State: state.String(), Rank: rank, Count: count})
		phaseCounts[phase] += count
		resp.Total += count
	}
	for _, phase := range domain.Phases() {
		resp.ByPhase = append(resp.ByPhase, transport.PhaseCount{Phase: string(phase), Count: phaseCounts[phase]})
	}
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.directory.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	return nil
}

// ToLeadResponse converts a domain lead to its API representation.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	phase, _ := domain.PhaseOf(lead.State)
	return transport.LeadResponse{
		ID:                lead.ID,
		Email:             lead.Email,
		FirstName:         lead.FirstName,
		LastName:          lead.LastName,
		Phone:             lead.Phone,
		State:             lead.State.String(),
		Phase:             string(phase),
		AutomationEnabled: lead.AutomationEnabled,
		HumanRequired:     lead.HumanRequired,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

// mapError translates lifecycle errors into apperr kinds.
func mapError(err error) error {
	var unknown *domain.UnknownStateError
	var invalid *domain.InvalidTransitionError

	switch {
	case errors.As(err, &unknown):
		return apperr.Wrap(apperr.KindBadRequest, unknown.Error(), err).
			WithDetails(map[string]any{"allowedStates": domain.States()})
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), err).
			WithDetails(map[string]string{"from": invalid.From.String(), "to": invalid.To.String()})
	case errors.Is(err, domain.ErrLeadNotFound):
		return apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	case errors.Is(err, domain.ErrConflict):
		return apperr.Wrap(apperr.KindConflict, "lead was modified concurrently, retry the request", err)
	case errors.Is(err, domain.ErrTimeout):
		return apperr.Wrap(apperr.KindTimeout, "lifecycle operation timed out", err)
	default:
		return err
	}
}
