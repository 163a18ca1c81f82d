package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/audit"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/lifecycle"
	"github.com/spec-kit/incident-service/internal/persistence"
	"github.com/spec-kit/incident-service/internal/policy"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// Authorizer decides whether a role may act on a resource kind.
type Authorizer interface {
	Decide(role domain.Role, action policy.Action, kind policy.Kind, isOwner bool) policy.Decision
}

// IncidentLocker serialises writers of one incident across processes. A
// failed Acquire leaves nothing held.
type IncidentLocker interface {
	Acquire(ctx context.Context, incidentID string) (release func(context.Context) error, err error)
}

// IncidentService orchestrates the incident lifecycle.
type IncidentService struct {
	store      *repository.Store
	recorder   *audit.Recorder
	policy     Authorizer
	locker     IncidentLocker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// IncidentDependencies bundles collaborators for the incident service.
type IncidentDependencies struct {
	Store      *repository.Store
	Policy     Authorizer
	Locker     IncidentLocker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CreateIncidentInput describes incident creation payload.
type CreateIncidentInput struct {
	EquipmentID string
	Title       string
	Description string
	Priority    domain.IncidentPriority
	Private     bool
	// State is ignored: new incidents always start pending.
	State domain.IncidentState
}

// IncidentPatch lists editable fields; nil leaves a field untouched.
type IncidentPatch struct {
	Title       *string
	Description *string
	Priority    *domain.IncidentPriority
	Resolution  *string
}

// IsEmpty reports whether the patch touches nothing.
func (p IncidentPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Resolution == nil
}

// IncidentView is an incident together with its equipment and derived location.
type IncidentView struct {
	Incident  *domain.Incident
	Equipment *domain.Equipment
	Location  *domain.Location
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &IncidentService{
		store:      deps.Store,
		recorder:   audit.NewRecorder(deps.Store.Logs, logger).WithClock(clock),
		policy:     deps.Policy,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// CreateIncident reports a new incident against existing equipment.
func (s *IncidentService) CreateIncident(ctx context.Context, actor domain.Actor, input CreateIncidentInput) (*domain.Incident, error) {
	if err := s.authorize(actor, policy.ActionCreate, policy.KindIncident, false); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if strings.TrimSpace(input.EquipmentID) == "" {
		return nil, errorutil.NewValidationError("equipment_id is required", map[string]any{"field": "equipment_id"})
	}
	if err := requireID("equipment", input.EquipmentID); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.IncidentPriorityMedium
	}
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": string(priority)})
	}

	if _, err := s.store.Users.GetByID(ctx, actor.ID); err != nil {
		return nil, s.lookupError(err, "user", actor.ID)
	}

	now := s.now().UTC()
	incident := &domain.Incident{
		ID:          uuid.NewString(),
		Key:         generateIncidentKey(),
		EquipmentID: input.EquipmentID,
		ReporterID:  actor.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		State:       domain.IncidentStatePending,
		Priority:    priority,
		Active:      true,
		Private:     input.Private,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Equipment.Lock(ctx, incident.EquipmentID, repository.LockShare); err != nil {
			return s.lookupError(err, "equipment", incident.EquipmentID)
		}
		if err := s.store.Incidents.Create(ctx, incident); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}
		_, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionCreated, "")
		return err
	})
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}

	s.logger.Info("incident created",
		zap.String("incident_id", incident.ID),
		zap.String("key", incident.Key),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload: events.IncidentCreatedPayload{
			EquipmentID: incident.EquipmentID,
			Priority:    incident.Priority,
			Title:       incident.Title,
			Private:     incident.Private,
		},
	})
	return incident, nil
}

// ChangeState moves an incident along the lifecycle and records the edge.
func (s *IncidentService) ChangeState(ctx context.Context, actor domain.Actor, incidentID string, requested domain.IncidentState) (*domain.Incident, error) {
	if actor.IsZero() {
		return nil, errorutil.NewUnauthenticated("actor required")
	}
	release, err := s.acquire(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, policy.ActionUpdate, policy.KindIncident, incident.IsOwnedBy(actor.ID)); err != nil {
		return nil, err
	}

	from := incident.State
	next, err := lifecycle.Apply(from, requested)
	if err != nil {
		var rejection *lifecycle.Rejection
		if errors.As(err, &rejection) {
			s.logger.Debug("transition rejected",
				zap.String("incident_id", incident.ID),
				zap.String("from", string(from)),
				zap.String("to", string(requested)),
				zap.String("reason", string(rejection.Reason)))
			return nil, errorutil.NewInvalidTransition(string(from), string(requested), string(rejection.Reason))
		}
		return nil, err
	}

	expected := incident.Version
	now := s.now().UTC()
	incident.State = next
	incident.UpdatedAt = now
	if next == domain.IncidentStateClosed {
		incident.ClosedAt = &now
	}

	note := fmt.Sprintf("%s->%s", from, next)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Incidents.Update(ctx, incident, expected); err != nil {
			return fmt.Errorf("update incident state: %w", err)
		}
		_, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionStateChanged, note)
		return err
	})
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}

	s.logger.Info("incident state changed",
		zap.String("incident_id", incident.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentStateChanged,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload: events.IncidentStateChangedPayload{
			OldState: from,
			NewState: next,
		},
	})
	return incident, nil
}

// EditFields applies a partial update to the editable incident fields.
// Priority and resolution are reserved for staff.
func (s *IncidentService) EditFields(ctx context.Context, actor domain.Actor, incidentID string, patch IncidentPatch) (*domain.Incident, error) {
	if actor.IsZero() {
		return nil, errorutil.NewUnauthenticated("actor required")
	}
	if patch.IsEmpty() {
		return nil, errorutil.NewValidationError("no fields to update", nil)
	}
	release, err := s.acquire(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, policy.ActionUpdate, policy.KindIncident, incident.IsOwnedBy(actor.ID)); err != nil {
		return nil, err
	}
	if (patch.Priority != nil || patch.Resolution != nil) && !actor.Role.IsStaff() {
		return nil, errorutil.NewDenied("only staff may change priority or resolution")
	}

	var changed []string
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, errorutil.NewValidationError("title must not be empty", map[string]any{"field": "title"})
		}
		if title != incident.Title {
			incident.Title = title
			changed = append(changed, "title")
		}
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description != incident.Description {
			incident.Description = description
			changed = append(changed, "description")
		}
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": string(*patch.Priority)})
		}
		if *patch.Priority != incident.Priority {
			incident.Priority = *patch.Priority
			changed = append(changed, "priority")
		}
	}
	if patch.Resolution != nil {
		var resolution *string
		if trimmed := strings.TrimSpace(*patch.Resolution); trimmed != "" {
			resolution = &trimmed
		}
		if !sameOptional(resolution, incident.Resolution) {
			incident.Resolution = resolution
			changed = append(changed, "resolution")
		}
	}
	if len(changed) == 0 {
		return incident, nil
	}

	expected := incident.Version
	incident.UpdatedAt = s.now().UTC()
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Incidents.Update(ctx, incident, expected); err != nil {
			return fmt.Errorf("update incident fields: %w", err)
		}
		_, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionEdited, "fields: "+strings.Join(changed, ", "))
		return err
	})
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}

	s.logger.Info("incident edited",
		zap.String("incident_id", incident.ID),
		zap.Strings("fields", changed),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentEdited,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload:    events.IncidentEditedPayload{Fields: changed},
	})
	return incident, nil
}

// DeleteIncident soft-deletes an incident. Its log entries are kept and a
// final "deleted" entry is appended.
func (s *IncidentService) DeleteIncident(ctx context.Context, actor domain.Actor, incidentID string) error {
	if actor.IsZero() {
		return errorutil.NewUnauthenticated("actor required")
	}
	release, err := s.acquire(ctx, incidentID)
	if err != nil {
		return err
	}
	defer release()

	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, policy.ActionDelete, policy.KindIncident, incident.IsOwnedBy(actor.ID)); err != nil {
		return err
	}

	expected := incident.Version
	incident.Active = false
	incident.UpdatedAt = s.now().UTC()
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Incidents.Update(ctx, incident, expected); err != nil {
			return fmt.Errorf("deactivate incident: %w", err)
		}
		_, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionDeleted, "")
		return err
	})
	if err != nil {
		return s.writeError(err, incident.ID)
	}

	s.logger.Info("incident deleted", zap.String("incident_id", incident.ID), zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentDeleted,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
	})
	return nil
}

// ReassignEquipment points an incident at different equipment. Staff only.
func (s *IncidentService) ReassignEquipment(ctx context.Context, actor domain.Actor, incidentID, equipmentID string) (*domain.Incident, error) {
	if actor.IsZero() {
		return nil, errorutil.NewUnauthenticated("actor required")
	}
	if strings.TrimSpace(equipmentID) == "" {
		return nil, errorutil.NewValidationError("equipment_id is required", map[string]any{"field": "equipment_id"})
	}
	release, err := s.acquire(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, policy.ActionUpdate, policy.KindIncident, incident.IsOwnedBy(actor.ID)); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, errorutil.NewDenied("only staff may reassign equipment")
	}
	if incident.EquipmentID == equipmentID {
		return nil, errorutil.NewValidationError("incident already references this equipment", map[string]any{"equipment_id": equipmentID})
	}
	if err := requireID("equipment", equipmentID); err != nil {
		return nil, err
	}
	previous := incident.EquipmentID
	expected := incident.Version
	incident.EquipmentID = equipmentID
	incident.UpdatedAt = s.now().UTC()
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Equipment.Lock(ctx, equipmentID, repository.LockShare); err != nil {
			return s.lookupError(err, "equipment", equipmentID)
		}
		if err := s.store.Incidents.Update(ctx, incident, expected); err != nil {
			return fmt.Errorf("reassign incident: %w", err)
		}
		_, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionReassigned, previous+"->"+equipmentID)
		return err
	})
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}

	s.logger.Info("incident reassigned",
		zap.String("incident_id", incident.ID),
		zap.String("from_equipment", previous),
		zap.String("to_equipment", equipmentID))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentReassigned,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload: events.IncidentReassignedPayload{
			OldEquipmentID: previous,
			NewEquipmentID: equipmentID,
		},
	})
	return incident, nil
}

// AddNote appends a manual note to the incident log.
func (s *IncidentService) AddNote(ctx context.Context, actor domain.Actor, incidentID, note string) (*domain.LogEntry, error) {
	if err := s.authorize(actor, policy.ActionCreate, policy.KindLogEntry, false); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, errorutil.NewValidationError("note is required", map[string]any{"field": "note"})
	}
	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	entry, err := s.recorder.Append(ctx, incident.ID, actor.ID, domain.LogActionNote, note)
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentNoteAdded,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload: events.IncidentNotePayload{
			LogID:       entry.ID,
			NotePreview: stringPreview(note, 120),
		},
	})
	return entry, nil
}

// GetIncident returns one incident with its equipment and location resolved.
func (s *IncidentService) GetIncident(ctx context.Context, actor domain.Actor, incidentID string) (*IncidentView, error) {
	if err := s.authorize(actor, policy.ActionView, policy.KindIncident, false); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, incident) {
		return nil, errorutil.NewDenied("incident is private")
	}

	view := &IncidentView{Incident: incident}
	equipment, err := s.store.Equipment.GetByID(ctx, incident.EquipmentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return view, nil
	case err != nil:
		return nil, s.writeError(err, incident.ID)
	}
	view.Equipment = equipment

	location, err := s.store.Locations.GetByID(ctx, equipment.LocationID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, s.writeError(err, incident.ID)
	default:
		view.Location = location
	}
	return view, nil
}

// ListIncidents returns active incidents matching filter. Users only see
// other reporters' incidents when they are not private.
func (s *IncidentService) ListIncidents(ctx context.Context, actor domain.Actor, filter repository.IncidentFilter) ([]domain.Incident, error) {
	if err := s.authorize(actor, policy.ActionView, policy.KindIncident, false); err != nil {
		return nil, err
	}
	if filterMatchesNothing(filter.EquipmentID, filter.LocationID, filter.ReporterID) {
		return []domain.Incident{}, nil
	}
	if !actor.Role.IsStaff() {
		filter.VisibleTo = &actor.ID
	}
	filter.Limit, filter.Offset = repository.NormalizePage(filter.Limit, filter.Offset)
	incidents, err := s.store.Incidents.List(ctx, filter)
	if err != nil {
		return nil, s.writeError(fmt.Errorf("list incidents: %w", err), "")
	}
	return incidents, nil
}

// ListLogs returns an incident's log in insertion order.
func (s *IncidentService) ListLogs(ctx context.Context, actor domain.Actor, incidentID string) ([]domain.LogEntry, error) {
	if err := s.authorize(actor, policy.ActionView, policy.KindLogEntry, false); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, incident) {
		return nil, errorutil.NewDenied("incident is private")
	}
	entries, err := s.recorder.ForIncident(ctx, incident.ID)
	if err != nil {
		return nil, s.writeError(err, incident.ID)
	}
	return entries, nil
}

// QueryLogs searches the log by incident, actor or action. Users without a
// visible incident in the filter only see their own entries.
func (s *IncidentService) QueryLogs(ctx context.Context, actor domain.Actor, filter repository.LogFilter) ([]domain.LogEntry, error) {
	if err := s.authorize(actor, policy.ActionView, policy.KindLogEntry, false); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		if filter.IncidentID == nil {
			filter.ActorID = &actor.ID
		} else {
			incident, err := s.loadIncident(ctx, *filter.IncidentID)
			if err != nil {
				return nil, err
			}
			if !canSee(actor, incident) {
				return nil, errorutil.NewDenied("incident is private")
			}
		}
	}
	if filterMatchesNothing(filter.IncidentID, filter.ActorID) {
		return []domain.LogEntry{}, nil
	}
	filter.Limit, filter.Offset = repository.NormalizePage(filter.Limit, filter.Offset)
	entries, err := s.recorder.Query(ctx, filter)
	if err != nil {
		return nil, s.writeError(err, "")
	}
	return entries, nil
}

func (s *IncidentService) authorize(actor domain.Actor, action policy.Action, kind policy.Kind, isOwner bool) error {
	return authorize(s.policy, actor, action, kind, isOwner)
}

func authorize(p Authorizer, actor domain.Actor, action policy.Action, kind policy.Kind, isOwner bool) error {
	if actor.IsZero() {
		return errorutil.NewUnauthenticated("actor required")
	}
	if p == nil || p.Decide(actor.Role, action, kind, isOwner) != policy.Allow {
		return errorutil.NewDenied(fmt.Sprintf("%s may not %s %s", actor.Role, action, kind))
	}
	return nil
}

// loadIncident returns an active incident or NOT_FOUND.
func (s *IncidentService) loadIncident(ctx context.Context, id string) (*domain.Incident, error) {
	if err := requireID("incident", id); err != nil {
		return nil, err
	}
	incident, err := s.store.Incidents.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "incident", id)
	}
	if !incident.Active {
		return nil, errorutil.NewNotFound("incident", map[string]any{"id": id})
	}
	return incident, nil
}

func (s *IncidentService) acquire(ctx context.Context, incidentID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, incidentID)
	if err != nil {
		if errors.Is(err, persistence.ErrLockNotAcquired) {
			return nil, errorutil.NewConflict("incident is being modified by another request", map[string]any{"id": incidentID})
		}
		s.logger.Error("incident lock failed", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, errorutil.NewStorageError(err)
	}
	return func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("incident lock release failed", zap.String("incident_id", incidentID), zap.Error(err))
		}
	}, nil
}

func (s *IncidentService) lookupError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	s.logger.Error("lookup failed", zap.String("resource", resource), zap.String("id", id), zap.Error(err))
	return errorutil.NewStorageError(err)
}

// writeError translates repository sentinels and passes typed errors through.
func (s *IncidentService) writeError(err error, incidentID string) error {
	var domainErr *errorutil.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrConflict):
		s.logger.Debug("incident version conflict", zap.String("incident_id", incidentID))
		return errorutil.NewConflict("incident was modified concurrently; reload and retry", map[string]any{"id": incidentID})
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound("incident", map[string]any{"id": incidentID})
	}
	s.logger.Error("incident write failed", zap.String("incident_id", incidentID), zap.Error(err))
	return errorutil.NewStorageError(err)
}

func (s *IncidentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// canSee hides private incidents from users other than their reporter.
func canSee(actor domain.Actor, incident *domain.Incident) bool {
	return !incident.Private || actor.Role.IsStaff() || incident.IsOwnedBy(actor.ID)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

func generateIncidentKey() string {
	return "INC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
