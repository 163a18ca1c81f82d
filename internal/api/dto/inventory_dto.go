package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EquipmentRequest payload for create and update.
type EquipmentRequest struct {
	LocationID       string `json:"location_id"`
	Model            string `json:"model"`
	SerialNumber     string `json:"serial_number"`
	OperationalState string `json:"operational_state"`
	Notes            string `json:"notes"`
}

// EquipmentResponse representation.
type EquipmentResponse struct {
	ID               string    `json:"id"`
	LocationID       string    `json:"location_id"`
	Model            string    `json:"model"`
	SerialNumber     string    `json:"serial_number"`
	OperationalState string    `json:"operational_state"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LocationRequest payload for create and update.
type LocationRequest struct {
	Name     string `json:"name"`
	Building string `json:"building"`
	Floor    string `json:"floor"`
	Room     string `json:"room"`
	Notes    string `json:"notes"`
}

// LocationResponse representation.
type LocationResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Building string `json:"building"`
	Floor    string `json:"floor"`
	Room     string `json:"room"`
	Notes    string `json:"notes"`
}

// FromEquipment maps domain equipment; nil stays nil.
func FromEquipment(e *domain.Equipment) *EquipmentResponse {
	if e == nil {
		return nil
	}
	return &EquipmentResponse{
		ID:               e.ID,
		LocationID:       e.LocationID,
		Model:            e.Model,
		SerialNumber:     e.SerialNumber,
		OperationalState: e.OperationalState,
		Notes:            e.Notes,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// FromLocation maps a domain location; nil stays nil.
func FromLocation(l *domain.Location) *LocationResponse {
	if l == nil {
		return nil
	}
	return &LocationResponse{
		ID:       l.ID,
		Name:     l.Name,
		Building: l.Building,
		Floor:    l.Floor,
		Room:     l.Room,
		Notes:    l.Notes,
	}
}
