package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/api/http/handlers"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/observability"
)

// RouteConfig bundles dependencies for route registration. Identity is nil when an
// external identity provider is configured.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Dinners        *handlers.DinnersHandler
	Identity       *handlers.IdentityHandler
	AuthMiddleware *auth.AuthMiddleware
	Principals     auth.RoleLookup
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth", cfg.AuthMiddleware.Handle)
	authGroup.Get("/current-user", cfg.Auth.CurrentUser)
	authGroup.Get("/check-role-selection", cfg.Auth.CheckRoleSelection)
	authGroup.Post("/update-role", cfg.Auth.UpdateRole)
	authGroup.Get("/access", cfg.Auth.Access)
	authGroup.Post("/signout", cfg.Auth.SignOut)

	api.Get("/dinners", cfg.Dinners.List)
	api.Get("/dinners/:id", cfg.Dinners.Get)
	api.Post("/dinners",
		cfg.AuthMiddleware.Handle,
		auth.RequireCapability(access.CapabilityHostArea, cfg.Principals, cfg.Metrics),
		cfg.Dinners.Create)
	api.Post("/dinners/:id/bookings",
		cfg.AuthMiddleware.Handle,
		auth.RequireCapability(access.CapabilityBook, cfg.Principals, cfg.Metrics),
		cfg.Dinners.Book)
	api.Get("/users/me/bookings", cfg.AuthMiddleware.Handle, cfg.Dinners.MyBookings)

	if cfg.Identity != nil {
		gotrue := app.Group("/auth/v1")
		gotrue.Post("/otp", cfg.Identity.SendCode)
		gotrue.Post("/verify", cfg.Identity.Verify)
		gotrue.Post("/token", cfg.Identity.Token)
		gotrue.Get("/user", cfg.Identity.User)
		gotrue.Put("/user", cfg.Identity.UpdateUser)
		gotrue.Post("/logout", cfg.Identity.Logout)
	}
}
