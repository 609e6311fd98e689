package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sales-erp-service/internal/api/http/handlers"
	"github.com/spec-kit/sales-erp-service/internal/auth"
	"github.com/spec-kit/sales-erp-service/internal/domain"
)

// PublicPaths lists the path prefixes the authentication gate passes
// through without header parsing.
var PublicPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/health",
	"/docs",
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
	Gate   *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The gate runs once per request; the
// role guards on protected groups make the actual rejection decisions.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/register", auth.RequireRole(domain.RoleAdmin), cfg.Auth.Register)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)

	users := app.Group("/api/v1/users", auth.RequireRole(domain.RoleAdmin))
	users.Get("/", cfg.Users.List)
	users.Get("/count", cfg.Users.Count)

	employees := app.Group("/api/v1/employees", auth.RequireRole(domain.RoleAdmin))
	employees.Get("/", cfg.Users.ListEmployees)
	employees.Put("/:id", cfg.Users.UpdateEmployee)
	employees.Delete("/:id", cfg.Users.DeleteEmployee)
}
