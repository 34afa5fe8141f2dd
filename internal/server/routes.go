package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giftlist/internal/handlers"
	"giftlist/internal/handlers/api"
	"giftlist/internal/middleware"
)

// AuthRoutes is the sign-in flow.
type AuthRoutes interface {
	Login(c fiber.Ctx) error
	Callback(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth       AuthRoutes
	Middleware *middleware.AuthMiddleware
	App        *handlers.AppHandler
	Users      *api.UserHandler
	Items      *api.ItemHandler
	Probe      *handlers.ProbeHandler
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(h Handlers) {
	requireAuth := h.Middleware.RequireAuth

	// Infrastructure
	s.App.Get("/healthz", h.Probe.Liveness)
	s.App.Get("/readyz", h.Probe.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Auth routes
	s.App.Get("/login", func(c fiber.Ctx) error {
		return c.Render("login", handlers.MergeBranding(fiber.Map{"Title": "Sign in"}, s.Cfg))
	})
	s.App.Get("/auth/login", h.Auth.Login)
	s.App.Get("/auth/callback", h.Auth.Callback)
	s.App.Get("/auth/logout", h.Auth.Logout)

	// My list
	s.App.Get("/", requireAuth, h.App.Index)
	s.App.Post("/items", requireAuth, h.App.SaveItem)
	s.App.Get("/items/new", requireAuth, h.App.NewItem)
	s.App.Get("/items/:id/edit", requireAuth, h.App.EditItem)
	s.App.Delete("/items/:id", requireAuth, h.App.DeleteItem)

	// Family board
	s.App.Get("/family", requireAuth, h.App.Family)
	s.App.Post("/family/select/:uid", requireAuth, h.App.SelectRecipient)
	s.App.Get("/family/items", requireAuth, h.App.RecipientItems)
	s.App.Post("/family/items", requireAuth, h.App.SuggestItem)
	s.App.Post("/family/items/:id/purchase", requireAuth, h.App.TogglePurchase)
	s.App.Post("/family/items/:id/note", requireAuth, h.App.SaveNote)

	// Live updates
	s.App.Get("/events", requireAuth, h.App.Events)

	// JSON API
	v1 := s.App.Group("/api/v1", h.Middleware.RequireAPIAuth)
	v1.Get("/me", h.Users.Me)
	v1.Get("/users", h.Users.List)
	v1.Get("/recipients/:uid/items", h.Items.RecipientItems)
}
