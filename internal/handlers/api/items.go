package api

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftlist/internal/giftview"
	"giftlist/internal/models"
)

// ItemStore is what the item API reads.
type ItemStore interface {
	giftview.AnnotationSource
	Directory
	ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
}

// ItemHandler serves one-shot renders of a recipient's list.
type ItemHandler struct {
	db      ItemStore
	workers int
	log     logrus.FieldLogger
}

// NewItemHandler creates a new API item handler.
func NewItemHandler(database ItemStore, workers int, log logrus.FieldLogger) *ItemHandler {
	return &ItemHandler{db: database, workers: workers, log: log}
}

type recipientItemsResponse struct {
	RecipientID      uuid.UUID         `json:"recipient_id"`
	Recipient        string            `json:"recipient"`
	Filter           giftview.Filter   `json:"filter"`
	UnpurchasedFirst bool              `json:"unpurchased_first"`
	List             giftview.Rendered `json:"list"`
}

// RecipientItems renders another family member's list for the signed-in
// giver. Asking for your own list is refused: it would reveal giver data.
func (h *ItemHandler) RecipientItems(c fiber.Ctx) error {
	viewer, ok := c.Locals("user").(*models.User)
	if !ok {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	recipientID, err := uuid.Parse(c.Params("uid"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid recipient id")
	}
	if recipientID == viewer.ID {
		return jsonError(c, fiber.StatusForbidden, "you cannot view giver data for your own list")
	}

	users, err := h.db.ListUsers(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch users")
	}
	names := make(map[uuid.UUID]string, len(users))
	var recipient *models.User
	for i := range users {
		names[users[i].ID] = users[i].Name()
		if users[i].ID == recipientID {
			recipient = &users[i]
		}
	}
	if recipient == nil {
		return jsonError(c, fiber.StatusNotFound, "recipient not found")
	}

	items, err := h.db.ListItemsByOwner(c.Context(), recipientID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch items")
	}

	model := giftview.New(h.db, giftview.Options{
		ViewerID: viewer.ID,
		Workers:  h.workers,
		Log:      h.log,
	})
	gen := model.Select(recipientID)
	if !model.Ingest(c.Context(), gen, items) {
		return jsonError(c, fiber.StatusServiceUnavailable, "request cancelled")
	}

	filter := giftview.ParseFilter(c.Query("filter"))
	unpurchasedFirst := c.Query("sort") == "unpurchased"
	model.SetFilter(filter)
	model.SetUnpurchasedFirst(unpurchasedFirst)

	return jsonSuccess(c, recipientItemsResponse{
		RecipientID:      recipientID,
		Recipient:        recipient.Name(),
		Filter:           filter,
		UnpurchasedFirst: unpurchasedFirst,
		List:             giftview.Render(model.RenderInput(names)),
	})
}
