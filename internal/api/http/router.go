package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Public         *handlers.PublicTicketsHandler
	AgentTickets   *handlers.AgentTicketsHandler
	Agents         *handlers.AgentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Public and agent routes share prefixes, so
// authentication is attached per route.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	agent := func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAgent(), h}
	}

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Get("/metrics", agent(cfg.Health.Metrics)...)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Agents.Register)
	authGroup.Post("/login", cfg.Agents.Login)
	authGroup.Get("/me", agent(cfg.Agents.Me)...)
	authGroup.Post("/password/change", agent(cfg.Agents.ChangePassword)...)

	tickets := api.Group("/tickets")
	tickets.Post("/submit", cfg.Public.SubmitTicket)
	tickets.Post("/track", cfg.Public.TrackTicket)
	tickets.Get("/", agent(cfg.AgentTickets.ListTickets)...)
	tickets.Get("/stats/overview", agent(cfg.AgentTickets.Stats)...)
	tickets.Get("/:id", agent(cfg.AgentTickets.GetTicket)...)
	tickets.Put("/:id/status", agent(cfg.AgentTickets.UpdateStatus)...)
	tickets.Put("/:id/priority", agent(cfg.AgentTickets.UpdatePriority)...)
	tickets.Delete("/:id", agent(cfg.AgentTickets.DeleteTicket)...)

	replies := api.Group("/replies")
	replies.Post("/track/:ticketNumber", cfg.Public.PublicReplies)
	replies.Post("/customer/:ticketNumber", cfg.Public.SendCustomerReply)
	replies.Get("/ticket/:id", agent(cfg.AgentTickets.ListReplies)...)
	replies.Post("/ticket/:id", agent(cfg.AgentTickets.SendAgentReply)...)
	replies.Delete("/:id", agent(cfg.AgentTickets.DeleteReply)...)
}
