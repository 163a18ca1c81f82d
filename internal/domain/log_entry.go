package domain

import "time"

// LogAction labels what an audit entry records.
type LogAction string

const (
	LogActionCreated      LogAction = "created"
	LogActionStateChanged LogAction = "state_changed"
	LogActionEdited       LogAction = "edited"
	LogActionReassigned   LogAction = "reassigned"
	LogActionDeleted      LogAction = "deleted"
	LogActionNote         LogAction = "note"
)

// LogEntry is an immutable audit trail entry for an incident.
type LogEntry struct {
	ID         int64
	IncidentID string
	ActorID    string
	Action     LogAction
	Note       *string
	CreatedAt  time.Time
}
