package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftlist/internal/config"
	"giftlist/internal/db"
	"giftlist/internal/validation"
)

// AppHandler serves the signed-in application: the viewer's own list, the
// family board and the live event stream.
type AppHandler struct {
	sessions  Sessions
	views     fiber.Views
	cfg       *config.Config
	log       logrus.FieldLogger
	keepAlive time.Duration
}

// NewAppHandler creates the application handler. views renders panel
// fragments for the event stream.
func NewAppHandler(sessions Sessions, views fiber.Views, cfg *config.Config, log logrus.FieldLogger) *AppHandler {
	keepAlive := cfg.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &AppHandler{
		sessions:  sessions,
		views:     views,
		cfg:       cfg,
		log:       log,
		keepAlive: keepAlive,
	}
}

// Index renders the My List tab.
func (h *AppHandler) Index(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	return c.Render("index", MergeBranding(pageData(ctrl, "my-list"), h.cfg))
}

// SaveItem creates or updates one of the viewer's own items.
// A non-empty id form field selects update.
func (h *AppHandler) SaveItem(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}

	form := itemForm{
		Name:  c.FormValue("name"),
		Link:  c.FormValue("link"),
		Notes: c.FormValue("notes"),
	}
	if raw := c.FormValue("id"); raw != "" {
		if form.ID, err = uuid.Parse(raw); err != nil {
			return htmxError(c, "Invalid item.")
		}
	}

	_, err = ctrl.SaveMyItem(c.Context(), form.ID, validation.ItemInput{
		Name:  form.Name,
		Link:  form.Link,
		Notes: form.Notes,
	})
	if err != nil {
		form.Error = userMessage(err)
		return c.Render("partials/item_form", fiber.Map{"Form": form}, "")
	}

	return c.Render("partials/item_form", fiber.Map{"Form": itemForm{}}, "")
}

// NewItem returns an empty item form.
func (h *AppHandler) NewItem(c fiber.Ctx) error {
	return c.Render("partials/item_form", fiber.Map{"Form": itemForm{}}, "")
}

// EditItem returns the item form filled in with an existing item.
func (h *AppHandler) EditItem(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	item, err := ctrl.MyItem(c.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrItemNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "item not found")
		}
		return err
	}

	return c.Render("partials/item_form", fiber.Map{
		"Form": itemForm{ID: item.ID, Name: item.Name, Link: item.Link, Notes: item.Notes},
	}, "")
}

// DeleteItem removes one of the viewer's own items.
func (h *AppHandler) DeleteItem(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := ctrl.DeleteMyItem(c.Context(), id); err != nil {
		return htmxError(c, userMessage(err))
	}

	// Empty response removes the row
	return c.SendString("")
}
