package domain

import "strings"

// State is a lead's position in the funnel. The set of states is fixed;
// every lookup below is an exhaustive switch so a new state must be given a
// rank and a phase before it can be used.
type State string

const (
	StateNew                 State = "NEW"
	StateAssessmentCompleted State = "ASSESSMENT_COMPLETED"
	StateNurturing           State = "NURTURING"
	StateOnlineClient        State = "ONLINE_CLIENT"
	StateAppliedPhysical     State = "APPLIED_PHYSICAL"
	StateAccepted            State = "ACCEPTED"
	StateClient              State = "CLIENT"
)

// Phase groups states for funnel reporting.
type Phase string

const (
	PhaseQualify Phase = "QUALIFY"
	PhaseNurture Phase = "NURTURE"
	PhaseClose   Phase = "CLOSE"
)

var catalog = [...]State{
	StateNew,
	StateAssessmentCompleted,
	StateNurturing,
	StateOnlineClient,
	StateAppliedPhysical,
	StateAccepted,
	StateClient,
}

// States returns the catalog in rank order.
func States() []State {
	states := make([]State, len(catalog))
	copy(states, catalog[:])
	return states
}

// Phases returns the funnel phases in order.
func Phases() []Phase {
	return []Phase{PhaseQualify, PhaseNurture, PhaseClose}
}

// RankOf returns the position of s in the funnel, starting at 1.
func RankOf(s State) (int, error) {
	switch s {
	case StateNew:
		return 1, nil
	case StateAssessmentCompleted:
		return 2, nil
	case StateNurturing:
		return 3, nil
	case StateOnlineClient:
		return 4, nil
	case StateAppliedPhysical:
		return 5, nil
	case StateAccepted:
		return 6, nil
	case StateClient:
		return 7, nil
	}
	return 0, &UnknownStateError{Value: string(s)}
}

// PhaseOf returns the funnel phase s belongs to.
func PhaseOf(s State) (Phase, error) {
	switch s {
	case StateNew, StateAssessmentCompleted:
		return PhaseQualify, nil
	case StateNurturing, StateOnlineClient, StateAppliedPhysical:
		return PhaseNurture, nil
	case StateAccepted, StateClient:
		return PhaseClose, nil
	}
	return "", &UnknownStateError{Value: string(s)}
}

// IsValid reports whether s is part of the catalog.
func IsValid(s State) bool {
	_, err := RankOf(s)
	return err == nil
}

// ParseState converts user input such as " nurturing " into a State.
func ParseState(raw string) (State, error) {
	s := State(strings.ToUpper(strings.TrimSpace(raw)))
	if !IsValid(s) {
		return "", &UnknownStateError{Value: raw}
	}
	return s, nil
}

func (s State) String() string {
	return string(s)
}

// DefaultReason is recorded when a transition is requested without a reason.
func DefaultReason(target State) string {
	return "Transition to " + string(target)
}
