package domain

import (
	"fmt"
	"strings"
	"time"
)

// IncidentState enumerates lifecycle states for incidents.
type IncidentState string

const (
	IncidentStatePending    IncidentState = "pending"
	IncidentStateInProgress IncidentState = "in_progress"
	IncidentStateResolved   IncidentState = "resolved"
	IncidentStateClosed     IncidentState = "closed"
)

// IncidentStates lists the canonical states in lifecycle order.
var IncidentStates = []IncidentState{
	IncidentStatePending,
	IncidentStateInProgress,
	IncidentStateResolved,
	IncidentStateClosed,
}

// Valid reports whether s belongs to the canonical state set.
func (s IncidentState) Valid() bool {
	switch s {
	case IncidentStatePending, IncidentStateInProgress, IncidentStateResolved, IncidentStateClosed:
		return true
	}
	return false
}

// ParseIncidentState accepts only canonical state values. Legacy labels such as
// "Pendiente" or "cancelada" are rejected rather than mapped.
func ParseIncidentState(raw string) (IncidentState, error) {
	state := IncidentState(strings.TrimSpace(raw))
	if !state.Valid() {
		return "", fmt.Errorf("unknown incident state %q", raw)
	}
	return state, nil
}

// IncidentPriority enumerates urgency levels.
type IncidentPriority string

const (
	IncidentPriorityLow    IncidentPriority = "low"
	IncidentPriorityMedium IncidentPriority = "medium"
	IncidentPriorityHigh   IncidentPriority = "high"
	IncidentPriorityUrgent IncidentPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p IncidentPriority) Valid() bool {
	switch p {
	case IncidentPriorityLow, IncidentPriorityMedium, IncidentPriorityHigh, IncidentPriorityUrgent:
		return true
	}
	return false
}

// ParseIncidentPriority validates a priority value. An empty value yields medium.
func ParseIncidentPriority(raw string) (IncidentPriority, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IncidentPriorityMedium, nil
	}
	priority := IncidentPriority(trimmed)
	if !priority.Valid() {
		return "", fmt.Errorf("unknown incident priority %q", raw)
	}
	return priority, nil
}

// Incident is a problem reported against one piece of equipment.
type Incident struct {
	ID          string
	Key         string
	EquipmentID string
	ReporterID  string
	Title       string
	Description string
	State       IncidentState
	Priority    IncidentPriority
	Resolution  *string
	Active      bool
	Private     bool
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// IsOwnedBy reports whether userID reported the incident.
func (i *Incident) IsOwnedBy(userID string) bool {
	return i != nil && userID != "" && i.ReporterID == userID
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	out := *i
	if i.Resolution != nil {
		res := *i.Resolution
		out.Resolution = &res
	}
	if i.ClosedAt != nil {
		closed := *i.ClosedAt
		out.ClosedAt = &closed
	}
	return &out
}
