package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CreateIncidentRequest payload. A supplied state is accepted but ignored.
type CreateIncidentRequest struct {
	EquipmentID string `json:"equipment_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Private     bool   `json:"private"`
	State       string `json:"state,omitempty"`
}

// UpdateIncidentRequest is a partial edit; omitted fields stay as they are.
type UpdateIncidentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Resolution  *string `json:"resolution"`
}

// ChangeStateRequest payload.
type ChangeStateRequest struct {
	State string `json:"state"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	EquipmentID string `json:"equipment_id"`
}

// AddNoteRequest payload.
type AddNoteRequest struct {
	Note string `json:"note"`
}

// IncidentResponse summarises an incident.
type IncidentResponse struct {
	ID          string                  `json:"id"`
	Key         string                  `json:"key"`
	EquipmentID string                  `json:"equipment_id"`
	ReporterID  string                  `json:"reporter_id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	State       domain.IncidentState    `json:"state"`
	Priority    domain.IncidentPriority `json:"priority"`
	Resolution  *string                 `json:"resolution"`
	Private     bool                    `json:"private"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ClosedAt    *time.Time              `json:"closed_at"`
}

// IncidentDetailResponse adds the resolved equipment and location.
type IncidentDetailResponse struct {
	IncidentResponse
	Equipment *EquipmentResponse `json:"equipment"`
	Location  *LocationResponse  `json:"location"`
}

// LogEntryResponse is one audit entry.
type LogEntryResponse struct {
	ID         int64            `json:"id"`
	IncidentID string           `json:"incident_id"`
	ActorID    string           `json:"actor_id"`
	Action     domain.LogAction `json:"action"`
	Note       *string          `json:"note"`
	CreatedAt  time.Time        `json:"created_at"`
}

// FromIncident maps a domain incident.
func FromIncident(i *domain.Incident) IncidentResponse {
	return IncidentResponse{
		ID:          i.ID,
		Key:         i.Key,
		EquipmentID: i.EquipmentID,
		ReporterID:  i.ReporterID,
		Title:       i.Title,
		Description: i.Description,
		State:       i.State,
		Priority:    i.Priority,
		Resolution:  i.Resolution,
		Private:     i.Private,
		Version:     i.Version,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
		ClosedAt:    i.ClosedAt,
	}
}

// FromIncidents maps a slice of incidents.
func FromIncidents(items []domain.Incident) []IncidentResponse {
	out := make([]IncidentResponse, 0, len(items))
	for i := range items {
		out = append(out, FromIncident(&items[i]))
	}
	return out
}

// FromLogEntries maps audit entries, preserving order.
func FromLogEntries(entries []domain.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromLogEntry(e))
	}
	return out
}

// FromLogEntry maps one audit entry.
func FromLogEntry(e domain.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:         e.ID,
		IncidentID: e.IncidentID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		Note:       e.Note,
		CreatedAt:  e.CreatedAt,
	}
}
