package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
)

func TestApply_AllPairs(t *testing.T) {
	t.Parallel()

	legal := map[Edge]bool{}
	for _, e := range Edges() {
		legal[e] = true
	}
	require.Len(t, legal, 5)

	accepted, rejected := 0, 0
	for _, from := range domain.IncidentStates {
		for _, to := range domain.IncidentStates {
			next, err := Apply(from, to)
			if legal[Edge{From: from, To: to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, next)
				accepted++
				continue
			}
			var rej *Rejection
			require.True(t, errors.As(err, &rej), "%s -> %s should be rejected", from, to)
			assert.Equal(t, from, next)
			if from == domain.IncidentStateClosed {
				assert.Equal(t, ReasonTerminalState, rej.Reason)
			} else {
				assert.Equal(t, ReasonInvalidEdge, rej.Reason)
			}
			rejected++
		}
	}
	assert.Equal(t, 5, accepted)
	assert.Equal(t, 11, rejected)
}

func TestApply_NamedEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   domain.IncidentState
		to     domain.IncidentState
		reason Reason
	}{
		{"start work", domain.IncidentStatePending, domain.IncidentStateInProgress, ""},
		{"cancel pending", domain.IncidentStatePending, domain.IncidentStateClosed, ""},
		{"resolve", domain.IncidentStateInProgress, domain.IncidentStateResolved, ""},
		{"cancel in progress", domain.IncidentStateInProgress, domain.IncidentStateClosed, ""},
		{"close resolved", domain.IncidentStateResolved, domain.IncidentStateClosed, ""},
		{"reopen resolved", domain.IncidentStateResolved, domain.IncidentStatePending, ReasonInvalidEdge},
		{"skip to resolved", domain.IncidentStatePending, domain.IncidentStateResolved, ReasonInvalidEdge},
		{"same state", domain.IncidentStateInProgress, domain.IncidentStateInProgress, ReasonInvalidEdge},
		{"closed to closed", domain.IncidentStateClosed, domain.IncidentStateClosed, ReasonTerminalState},
		{"legacy label", domain.IncidentStatePending, domain.IncidentState("Cancelada"), ReasonUnknownState},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Apply(tc.from, tc.to)
			if tc.reason == "" {
				assert.NoError(t, err)
				return
			}
			var rej *Rejection
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tc.reason, rej.Reason)
		})
	}
}

func TestApply_ClosedNeverLeaves(t *testing.T) {
	t.Parallel()
	for _, to := range domain.IncidentStates {
		_, err := Apply(domain.IncidentStateClosed, to)
		assert.Error(t, err, "closed -> %s", to)
	}
	assert.True(t, IsTerminal(domain.IncidentStateClosed))
	assert.False(t, IsTerminal(domain.IncidentStateResolved))
}
