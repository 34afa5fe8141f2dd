package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"giftlist/internal/models"
)

// UserLookup resolves a bound OIDC subject to its registration.
type UserLookup interface {
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
}

// AuthMiddleware handles user authentication via sessions.
type AuthMiddleware struct {
	db UserLookup
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(db UserLookup) *AuthMiddleware {
	return &AuthMiddleware{db: db}
}

// RequireAuth ensures the user is authenticated, redirecting to /login if not.
// HTMX requests get an HX-Redirect header instead so the whole page moves.
func (m *AuthMiddleware) RequireAuth(c fiber.Ctx) error {
	user := m.loadUser(c)
	if user == nil {
		if c.Get("HX-Request") != "" {
			c.Set("HX-Redirect", "/login")
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Redirect().To("/login")
	}

	c.Locals("user", user)
	return c.Next()
}

// RequireAPIAuth is RequireAuth for JSON endpoints.
func (m *AuthMiddleware) RequireAPIAuth(c fiber.Ctx) error {
	user := m.loadUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "unauthorized",
		})
	}

	c.Locals("user", user)
	return c.Next()
}

// OptionalAuth loads the user if authenticated, but doesn't require authentication.
func (m *AuthMiddleware) OptionalAuth(c fiber.Ctx) error {
	if user := m.loadUser(c); user != nil {
		c.Locals("user", user)
	}
	return c.Next()
}

func (m *AuthMiddleware) loadUser(c fiber.Ctx) *models.User {
	sess := session.FromContext(c)
	if sess == nil {
		return nil
	}

	userSub, _ := sess.Get("user_sub").(string)
	if userSub == "" {
		return nil
	}

	user, err := m.db.GetUserBySub(c.Context(), userSub)
	if err != nil {
		// Registration removed or rebound since sign-in
		sess.Destroy()
		return nil
	}
	return user
}
