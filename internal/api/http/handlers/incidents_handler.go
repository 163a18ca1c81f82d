package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// IncidentsHandler exposes incident and audit log endpoints.
type IncidentsHandler struct {
	service *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidentService *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{service: incidentService}
}

// Create POST /incidents.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.CreateIncident(c.UserContext(), actor, service.CreateIncidentInput{
		EquipmentID: req.EquipmentID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.IncidentPriority(req.Priority),
		Private:     req.Private,
		State:       domain.IncidentState(req.State),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// List GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseIncidentQuery(c)
	if err != nil {
		return err
	}
	incidents, err := h.service.ListIncidents(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncidents(incidents)})
}

// Get GET /incidents/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetIncident(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.IncidentDetailResponse{
		IncidentResponse: dto.FromIncident(view.Incident),
		Equipment:        dto.FromEquipment(view.Equipment),
		Location:         dto.FromLocation(view.Location),
	}})
}

// Update PATCH /incidents/:id.
func (h *IncidentsHandler) Update(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	patch := service.IncidentPatch{
		Title:       req.Title,
		Description: req.Description,
		Resolution:  req.Resolution,
	}
	if req.Priority != nil {
		priority, err := domain.ParseIncidentPriority(*req.Priority)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
		}
		patch.Priority = &priority
	}
	incident, err := h.service.EditFields(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// Delete DELETE /incidents/:id.
func (h *IncidentsHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteIncident(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeState POST /incidents/:id/state.
func (h *IncidentsHandler) ChangeState(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.ChangeState(c.UserContext(), actor, c.Params("id"), domain.IncidentState(req.State))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// Reassign POST /incidents/:id/reassign.
func (h *IncidentsHandler) Reassign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.service.ReassignEquipment(c.UserContext(), actor, c.Params("id"), req.EquipmentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// ListLogs GET /incidents/:id/logs.
func (h *IncidentsHandler) ListLogs(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListLogs(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromLogEntries(entries)})
}

// AddNote POST /incidents/:id/logs.
func (h *IncidentsHandler) AddNote(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.service.AddNote(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromLogEntry(*entry)})
}

// QueryLogs GET /logs.
func (h *IncidentsHandler) QueryLogs(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter := repository.LogFilter{
		IncidentID: optionalQuery(c, "incident_id"),
		ActorID:    optionalQuery(c, "actor_id"),
	}
	if action := optionalQuery(c, "action"); action != nil {
		a := domain.LogAction(*action)
		filter.Action = &a
	}
	filter.Limit, filter.Offset = page(c)
	entries, err := h.service.QueryLogs(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromLogEntries(entries)})
}

func parseIncidentQuery(c *fiber.Ctx) (repository.IncidentFilter, error) {
	filter := repository.IncidentFilter{
		EquipmentID: optionalQuery(c, "equipment_id"),
		LocationID:  optionalQuery(c, "location_id"),
		ReporterID:  optionalQuery(c, "reporter_id"),
		SearchTerm:  optionalQuery(c, "q"),
	}
	for _, raw := range splitList(c.Query("state")) {
		state, err := domain.ParseIncidentState(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "state"})
		}
		filter.States = append(filter.States, state)
	}
	for _, raw := range splitList(c.Query("priority")) {
		priority, err := domain.ParseIncidentPriority(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if raw := c.Query("private"); raw != "" {
		private, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("private must be a boolean", map[string]any{"field": "private"})
		}
		filter.Private = &private
	}
	filter.Limit, filter.Offset = page(c)
	return filter, nil
}
