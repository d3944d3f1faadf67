package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/http/handlers"
	apiws "github.com/spec-kit/handoff-service/internal/api/ws"
	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Analysts       *handlers.AnalystsHandler
	Tickets        *handlers.TicketsHandler
	Integrations   *handlers.IntegrationsHandler
	Realtime       *apiws.Handler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	analysts := app.Group("/analysts", cfg.AuthMiddleware.Handle)
	analysts.Get("/", cfg.Analysts.List)
	analysts.Get("/:id", cfg.Analysts.Get)
	analysts.Post("/", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Analysts.Create)
	analysts.Patch("/:id", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Analysts.Update)
	analysts.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Analysts.Deactivate)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/unclaimed", cfg.Tickets.ListUnclaimed)
	tickets.Get("/mine", cfg.Tickets.ListMine)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/claim", cfg.Tickets.Claim)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:id/transfer", cfg.Tickets.Transfer)

	integrations := app.Group("/integrations", cfg.Integrations.RequireIntegrationToken)
	integrations.Post("/discord/claim", cfg.Integrations.DiscordClaim)
	integrations.Post("/discord/resolve", cfg.Integrations.DiscordResolve)
	integrations.Post("/discord/reopen", cfg.Integrations.DiscordReopen)
	integrations.Post("/whatsapp/inbound", cfg.Integrations.WhatsAppInbound)

	app.Use("/ws", cfg.Realtime.UpgradeRequired)
	app.Get("/ws", websocket.New(cfg.Realtime.Serve))
}
