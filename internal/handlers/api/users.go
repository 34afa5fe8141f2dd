package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"giftlist/internal/models"
)

// Directory lists registered family members.
type Directory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// UserHandler exposes the signed-in user and the family roster.
type UserHandler struct {
	db Directory
}

// NewUserHandler creates a new API user handler.
func NewUserHandler(database Directory) *UserHandler {
	return &UserHandler{db: database}
}

type userResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Me returns the signed-in user.
func (h *UserHandler) Me(c fiber.Ctx) error {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return jsonSuccess(c, userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.Name(),
		PhotoURL:    user.PhotoURL,
		LastLoginAt: user.LastLoginAt,
	})
}

// List returns every other family member ordered by display name.
func (h *UserHandler) List(c fiber.Ctx) error {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	users, err := h.db.ListUsers(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch users")
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		if u.ID == user.ID {
			continue
		}
		resp = append(resp, userResponse{
			ID:          u.ID,
			DisplayName: u.Name(),
			PhotoURL:    u.PhotoURL,
		})
	}
	return jsonSuccess(c, resp)
}
