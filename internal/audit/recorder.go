// Package audit appends and queries incident log entries.
//
// Entries are append-only: the recorder exposes no way to change or remove
// one once written.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

// Recorder writes audit entries through a LogRepository.
type Recorder struct {
	logs   repository.LogRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a new audit Recorder.
func NewRecorder(logs repository.LogRepository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logs: logs, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Append records one action. Storage failures are returned to the caller
// as-is, wrapped with context; they are never retried here.
func (r *Recorder) Append(ctx context.Context, incidentID, actorID string, action domain.LogAction, note string) (*domain.LogEntry, error) {
	if incidentID == "" || actorID == "" || action == "" {
		return nil, errors.New("audit entry requires incident, actor and action")
	}
	entry := &domain.LogEntry{
		IncidentID: incidentID,
		ActorID:    actorID,
		Action:     action,
		CreatedAt:  r.now().UTC(),
	}
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		entry.Note = &trimmed
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		r.logger.Error("failed to write audit log",
			zap.String("incident_id", incidentID),
			zap.String("actor_id", actorID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("write audit log: %w", err)
	}
	return entry, nil
}

// Query returns entries in insertion order.
func (r *Recorder) Query(ctx context.Context, filter repository.LogFilter) ([]domain.LogEntry, error) {
	entries, err := r.logs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return entries, nil
}

// ForIncident returns every entry recorded against incidentID.
func (r *Recorder) ForIncident(ctx context.Context, incidentID string) ([]domain.LogEntry, error) {
	return r.Query(ctx, repository.LogFilter{IncidentID: &incidentID})
}
