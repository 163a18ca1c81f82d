package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/policy"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// InventoryService manages equipment and locations.
type InventoryService struct {
	store  *repository.Store
	policy Authorizer
	logger *zap.Logger
	now    func() time.Time
}

// EquipmentInput describes equipment attributes.
type EquipmentInput struct {
	LocationID       string
	Model            string
	SerialNumber     string
	OperationalState string
	Notes            string
}

// LocationInput describes location attributes.
type LocationInput struct {
	Name     string
	Building string
	Floor    string
	Room     string
	Notes    string
}

// NewInventoryService constructs the service.
func NewInventoryService(store *repository.Store, authorizer Authorizer, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{store: store, policy: authorizer, logger: logger, now: time.Now}
}

// CreateEquipment registers equipment at an existing location.
func (s *InventoryService) CreateEquipment(ctx context.Context, actor domain.Actor, input EquipmentInput) (*domain.Equipment, error) {
	if err := authorize(s.policy, actor, policy.ActionCreate, policy.KindEquipment, false); err != nil {
		return nil, err
	}
	if err := validateEquipment(input); err != nil {
		return nil, err
	}
	if err := requireID("location", input.LocationID); err != nil {
		return nil, err
	}
	if _, err := s.store.Locations.GetByID(ctx, input.LocationID); err != nil {
		return nil, s.translate(err, "location", input.LocationID)
	}
	now := s.now().UTC()
	eq := &domain.Equipment{
		ID:               uuid.NewString(),
		LocationID:       input.LocationID,
		Model:            strings.TrimSpace(input.Model),
		SerialNumber:     strings.TrimSpace(input.SerialNumber),
		OperationalState: strings.TrimSpace(input.OperationalState),
		Notes:            strings.TrimSpace(input.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Equipment.Create(ctx, eq); err != nil {
		return nil, s.translate(err, "equipment", eq.ID)
	}
	s.logger.Info("equipment created", zap.String("equipment_id", eq.ID), zap.String("actor_id", actor.ID))
	return eq, nil
}

// UpdateEquipment replaces equipment attributes.
func (s *InventoryService) UpdateEquipment(ctx context.Context, actor domain.Actor, id string, input EquipmentInput) (*domain.Equipment, error) {
	if err := authorize(s.policy, actor, policy.ActionUpdate, policy.KindEquipment, false); err != nil {
		return nil, err
	}
	if err := validateEquipment(input); err != nil {
		return nil, err
	}
	if err := requireID("equipment", id); err != nil {
		return nil, err
	}
	eq, err := s.store.Equipment.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "equipment", id)
	}
	if eq.LocationID != input.LocationID {
		if err := requireID("location", input.LocationID); err != nil {
			return nil, err
		}
		if _, err := s.store.Locations.GetByID(ctx, input.LocationID); err != nil {
			return nil, s.translate(err, "location", input.LocationID)
		}
	}
	eq.LocationID = input.LocationID
	eq.Model = strings.TrimSpace(input.Model)
	eq.SerialNumber = strings.TrimSpace(input.SerialNumber)
	eq.OperationalState = strings.TrimSpace(input.OperationalState)
	eq.Notes = strings.TrimSpace(input.Notes)
	eq.UpdatedAt = s.now().UTC()
	if err := s.store.Equipment.Update(ctx, eq); err != nil {
		return nil, s.translate(err, "equipment", id)
	}
	return eq, nil
}

// DeleteEquipment removes equipment no active incident refers to.
func (s *InventoryService) DeleteEquipment(ctx context.Context, actor domain.Actor, id string) error {
	if err := authorize(s.policy, actor, policy.ActionDelete, policy.KindEquipment, false); err != nil {
		return err
	}
	if err := requireID("equipment", id); err != nil {
		return err
	}
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Equipment.Lock(ctx, id, repository.LockExclusive); err != nil {
			return s.translate(err, "equipment", id)
		}
		open, err := s.store.Incidents.CountActiveByEquipment(ctx, id)
		if err != nil {
			return s.translate(err, "equipment", id)
		}
		if open > 0 {
			return errorutil.NewConflict("equipment has active incidents", map[string]any{"id": id, "incidents": open})
		}
		if err := s.store.Equipment.Delete(ctx, id); err != nil {
			return s.translate(err, "equipment", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("equipment deleted", zap.String("equipment_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// GetEquipment returns one piece of equipment.
func (s *InventoryService) GetEquipment(ctx context.Context, actor domain.Actor, id string) (*domain.Equipment, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindEquipment, false); err != nil {
		return nil, err
	}
	if err := requireID("equipment", id); err != nil {
		return nil, err
	}
	eq, err := s.store.Equipment.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "equipment", id)
	}
	return eq, nil
}

// ListEquipment returns equipment, optionally limited to one location.
func (s *InventoryService) ListEquipment(ctx context.Context, actor domain.Actor, locationID *string) ([]domain.Equipment, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindEquipment, false); err != nil {
		return nil, err
	}
	if filterMatchesNothing(locationID) {
		return []domain.Equipment{}, nil
	}
	items, err := s.store.Equipment.List(ctx, locationID)
	if err != nil {
		return nil, s.translate(err, "equipment", "")
	}
	return items, nil
}

// CreateLocation registers a location.
func (s *InventoryService) CreateLocation(ctx context.Context, actor domain.Actor, input LocationInput) (*domain.Location, error) {
	if err := authorize(s.policy, actor, policy.ActionCreate, policy.KindLocation, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errorutil.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	loc := &domain.Location{ID: uuid.NewString()}
	applyLocation(loc, input)
	if err := s.store.Locations.Create(ctx, loc); err != nil {
		return nil, s.translate(err, "location", loc.ID)
	}
	s.logger.Info("location created", zap.String("location_id", loc.ID), zap.String("actor_id", actor.ID))
	return loc, nil
}

// UpdateLocation replaces location attributes.
func (s *InventoryService) UpdateLocation(ctx context.Context, actor domain.Actor, id string, input LocationInput) (*domain.Location, error) {
	if err := authorize(s.policy, actor, policy.ActionUpdate, policy.KindLocation, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errorutil.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if err := requireID("location", id); err != nil {
		return nil, err
	}
	loc, err := s.store.Locations.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "location", id)
	}
	applyLocation(loc, input)
	if err := s.store.Locations.Update(ctx, loc); err != nil {
		return nil, s.translate(err, "location", id)
	}
	return loc, nil
}

// DeleteLocation removes a location that holds no equipment.
func (s *InventoryService) DeleteLocation(ctx context.Context, actor domain.Actor, id string) error {
	if err := authorize(s.policy, actor, policy.ActionDelete, policy.KindLocation, false); err != nil {
		return err
	}
	if err := requireID("location", id); err != nil {
		return err
	}
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Locations.GetByID(ctx, id); err != nil {
			return s.translate(err, "location", id)
		}
		count, err := s.store.Equipment.CountByLocation(ctx, id)
		if err != nil {
			return s.translate(err, "location", id)
		}
		if count > 0 {
			return errorutil.NewConflict("location still holds equipment", map[string]any{"id": id, "equipment": count})
		}
		if err := s.store.Locations.Delete(ctx, id); err != nil {
			return s.translate(err, "location", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("location deleted", zap.String("location_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// GetLocation returns one location.
func (s *InventoryService) GetLocation(ctx context.Context, actor domain.Actor, id string) (*domain.Location, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindLocation, false); err != nil {
		return nil, err
	}
	if err := requireID("location", id); err != nil {
		return nil, err
	}
	loc, err := s.store.Locations.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "location", id)
	}
	return loc, nil
}

// ListLocations returns every location.
func (s *InventoryService) ListLocations(ctx context.Context, actor domain.Actor) ([]domain.Location, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindLocation, false); err != nil {
		return nil, err
	}
	locations, err := s.store.Locations.List(ctx)
	if err != nil {
		return nil, s.translate(err, "location", "")
	}
	return locations, nil
}

func (s *InventoryService) translate(err error, resource, id string) error {
	var domainErr *errorutil.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrConflict):
		return errorutil.NewConflict(resource+" already exists", map[string]any{"id": id})
	}
	s.logger.Error("inventory storage failure", zap.String("resource", resource), zap.String("id", id), zap.Error(err))
	return errorutil.NewStorageError(fmt.Errorf("%s store: %w", resource, err))
}

func validateEquipment(input EquipmentInput) error {
	if strings.TrimSpace(input.Model) == "" {
		return errorutil.NewValidationError("model is required", map[string]any{"field": "model"})
	}
	if strings.TrimSpace(input.LocationID) == "" {
		return errorutil.NewValidationError("location_id is required", map[string]any{"field": "location_id"})
	}
	return nil
}

func applyLocation(loc *domain.Location, input LocationInput) {
	loc.Name = strings.TrimSpace(input.Name)
	loc.Building = strings.TrimSpace(input.Building)
	loc.Floor = strings.TrimSpace(input.Floor)
	loc.Room = strings.TrimSpace(input.Room)
	loc.Notes = strings.TrimSpace(input.Notes)
}
