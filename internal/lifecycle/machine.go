// Package lifecycle validates incident state transitions. It knows nothing
// about actors or storage.
package lifecycle

import (
	"fmt"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Reason is a stable, machine-readable rejection cause.
type Reason string

const (
	ReasonInvalidEdge   Reason = "invalid_edge"
	ReasonTerminalState Reason = "terminal_state"
	ReasonUnknownState  Reason = "unknown_state"
)

// Rejection is returned when a requested transition is not allowed.
type Rejection struct {
	From   domain.IncidentState
	To     domain.IncidentState
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("transition %s -> %s rejected: %s", r.From, r.To, r.Reason)
}

// Edge is a legal transition.
type Edge struct {
	From domain.IncidentState
	To   domain.IncidentState
}

var allowedTransitions = map[domain.IncidentState][]domain.IncidentState{
	domain.IncidentStatePending:    {domain.IncidentStateInProgress, domain.IncidentStateClosed},
	domain.IncidentStateInProgress: {domain.IncidentStateResolved, domain.IncidentStateClosed},
	domain.IncidentStateResolved:   {domain.IncidentStateClosed},
	domain.IncidentStateClosed:     {},
}

// Edges returns the legal transitions in lifecycle order.
func Edges() []Edge {
	var edges []Edge
	for _, from := range domain.IncidentStates {
		for _, to := range allowedTransitions[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// IsTerminal reports whether no transition may leave state.
func IsTerminal(state domain.IncidentState) bool {
	return state == domain.IncidentStateClosed
}

// Apply validates current -> requested and returns the new state. A
// rejection is always a *Rejection.
func Apply(current, requested domain.IncidentState) (domain.IncidentState, error) {
	if !current.Valid() || !requested.Valid() {
		return current, &Rejection{From: current, To: requested, Reason: ReasonUnknownState}
	}
	if IsTerminal(current) {
		return current, &Rejection{From: current, To: requested, Reason: ReasonTerminalState}
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == requested {
			return requested, nil
		}
	}
	return current, &Rejection{From: current, To: requested, Reason: ReasonInvalidEdge}
}
