package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Incidents      *handlers.IncidentsHandler
	Inventory      *handlers.InventoryHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Everything outside health, metrics and
// sign-in requires a bearer token; per-resource decisions stay in the services.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Post("/auth/password/change", cfg.Users.ChangePassword)

	incidents := protected.Group("/incidents")
	incidents.Get("/", cfg.Incidents.List)
	incidents.Post("/", cfg.Incidents.Create)
	incidents.Get("/:id", cfg.Incidents.Get)
	incidents.Patch("/:id", cfg.Incidents.Update)
	incidents.Delete("/:id", cfg.Incidents.Delete)
	incidents.Post("/:id/state", cfg.Incidents.ChangeState)
	incidents.Post("/:id/reassign", cfg.Incidents.Reassign)
	incidents.Get("/:id/logs", cfg.Incidents.ListLogs)
	incidents.Post("/:id/logs", cfg.Incidents.AddNote)

	protected.Get("/logs", cfg.Incidents.QueryLogs)

	equipment := protected.Group("/equipment")
	equipment.Get("/", cfg.Inventory.ListEquipment)
	equipment.Post("/", cfg.Inventory.CreateEquipment)
	equipment.Get("/:id", cfg.Inventory.GetEquipment)
	equipment.Put("/:id", cfg.Inventory.UpdateEquipment)
	equipment.Delete("/:id", cfg.Inventory.DeleteEquipment)

	locations := protected.Group("/locations")
	locations.Get("/", cfg.Inventory.ListLocations)
	locations.Post("/", cfg.Inventory.CreateLocation)
	locations.Get("/:id", cfg.Inventory.GetLocation)
	locations.Put("/:id", cfg.Inventory.UpdateLocation)
	locations.Delete("/:id", cfg.Inventory.DeleteLocation)

	users := protected.Group("/users")
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/me", cfg.Users.Me)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", cfg.Users.UpdateProfile)
	users.Put("/:id/role", cfg.Users.UpdateRole)
	users.Delete("/:id", cfg.Users.Delete)
}
