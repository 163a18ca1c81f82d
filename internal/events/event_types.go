package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated      EventType = "incident_created"
	EventIncidentStateChanged EventType = "incident_state_changed"
	EventIncidentEdited       EventType = "incident_edited"
	EventIncidentReassigned   EventType = "incident_reassigned"
	EventIncidentDeleted      EventType = "incident_deleted"
	EventIncidentNoteAdded    EventType = "incident_note_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID string      `json:"incident_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	EquipmentID string                  `json:"equipment_id"`
	Priority    domain.IncidentPriority `json:"priority"`
	Title       string                  `json:"title"`
	Private     bool                    `json:"private"`
}

// IncidentStateChangedPayload payload.
type IncidentStateChangedPayload struct {
	OldState domain.IncidentState `json:"old_state"`
	NewState domain.IncidentState `json:"new_state"`
}

// IncidentEditedPayload payload.
type IncidentEditedPayload struct {
	Fields []string `json:"fields"`
}

// IncidentReassignedPayload payload.
type IncidentReassignedPayload struct {
	OldEquipmentID string `json:"old_equipment_id"`
	NewEquipmentID string `json:"new_equipment_id"`
}

// IncidentNotePayload payload.
type IncidentNotePayload struct {
	LogID       int64  `json:"log_id"`
	NotePreview string `json:"note_preview"`
}
