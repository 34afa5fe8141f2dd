package handlers

import (
	"context"
	"errors"
	"html"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/google/uuid"

	"giftlist/internal/db"
	"giftlist/internal/family"
	"giftlist/internal/giftview"
	"giftlist/internal/models"
)

// Sessions hands out the live controller for a browser session.
type Sessions interface {
	Get(ctx context.Context, sessionID string, viewer models.User) (*family.Controller, error)
}

// AlertHTML renders message as an alert fragment.
func AlertHTML(message string) string {
	return `<div class="alert" role="alert">` + html.EscapeString(message) + `</div>`
}

// htmxError returns an error message as HTML that HTMX will display.
// Uses 200 status so HTMX processes the swap (HTMX ignores non-2xx by default).
func htmxError(c fiber.Ctx, message string) error {
	return c.SendString(AlertHTML(message))
}

// currentUser returns the user loaded by the auth middleware.
func currentUser(c fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals("user").(*models.User)
	if !ok || user == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return user, nil
}

// controller returns the session's family controller, starting it on first use.
func controller(c fiber.Ctx, sessions Sessions) (*family.Controller, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	sess := session.FromContext(c)
	if sess == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	ctrl, err := sessions.Get(c.Context(), sess.ID(), *user)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "Could not load your family lists. Please try again.")
	}
	return ctrl, nil
}

func paramID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// userMessage maps domain errors to the text shown in an alert.
func userMessage(err error) string {
	var input *family.InputError
	switch {
	case errors.As(err, &input):
		return input.Message
	case errors.Is(err, db.ErrOwnItem):
		return "You cannot mark items on your own list."
	case errors.Is(err, db.ErrItemNotFound), errors.Is(err, giftview.ErrUnknownItem):
		return "That item no longer exists."
	case errors.Is(err, family.ErrWriteFailed):
		return "Could not save your change. Please try again."
	case errors.Is(err, family.ErrSelfSelected),
		errors.Is(err, family.ErrUnknownRecipient),
		errors.Is(err, family.ErrNoRecipient),
		errors.Is(err, giftview.ErrNoSelection):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}
