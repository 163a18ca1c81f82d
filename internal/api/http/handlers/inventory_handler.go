package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// InventoryHandler exposes equipment and location endpoints.
type InventoryHandler struct {
	service *service.InventoryService
}

// NewInventoryHandler constructs handler.
func NewInventoryHandler(inventoryService *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: inventoryService}
}

// CreateEquipment POST /equipment.
func (h *InventoryHandler) CreateEquipment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.EquipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	eq, err := h.service.CreateEquipment(c.UserContext(), actor, equipmentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromEquipment(eq)})
}

// ListEquipment GET /equipment.
func (h *InventoryHandler) ListEquipment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListEquipment(c.UserContext(), actor, optionalQuery(c, "location_id"))
	if err != nil {
		return err
	}
	out := make([]*dto.EquipmentResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.FromEquipment(&items[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetEquipment GET /equipment/:id.
func (h *InventoryHandler) GetEquipment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	eq, err := h.service.GetEquipment(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromEquipment(eq)})
}

// UpdateEquipment PUT /equipment/:id.
func (h *InventoryHandler) UpdateEquipment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.EquipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	eq, err := h.service.UpdateEquipment(c.UserContext(), actor, c.Params("id"), equipmentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromEquipment(eq)})
}

// DeleteEquipment DELETE /equipment/:id.
func (h *InventoryHandler) DeleteEquipment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteEquipment(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateLocation POST /locations.
func (h *InventoryHandler) CreateLocation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	loc, err := h.service.CreateLocation(c.UserContext(), actor, locationInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromLocation(loc)})
}

// ListLocations GET /locations.
func (h *InventoryHandler) ListLocations(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	locations, err := h.service.ListLocations(c.UserContext(), actor)
	if err != nil {
		return err
	}
	out := make([]*dto.LocationResponse, 0, len(locations))
	for i := range locations {
		out = append(out, dto.FromLocation(&locations[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetLocation GET /locations/:id.
func (h *InventoryHandler) GetLocation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	loc, err := h.service.GetLocation(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromLocation(loc)})
}

// UpdateLocation PUT /locations/:id.
func (h *InventoryHandler) UpdateLocation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	loc, err := h.service.UpdateLocation(c.UserContext(), actor, c.Params("id"), locationInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromLocation(loc)})
}

// DeleteLocation DELETE /locations/:id.
func (h *InventoryHandler) DeleteLocation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteLocation(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func equipmentInput(req dto.EquipmentRequest) service.EquipmentInput {
	return service.EquipmentInput{
		LocationID:       req.LocationID,
		Model:            req.Model,
		SerialNumber:     req.SerialNumber,
		OperationalState: req.OperationalState,
		Notes:            req.Notes,
	}
}

func locationInput(req dto.LocationRequest) service.LocationInput {
	return service.LocationInput{
		Name:     req.Name,
		Building: req.Building,
		Floor:    req.Floor,
		Room:     req.Room,
		Notes:    req.Notes,
	}
}

