package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"giftlist/internal/family"
	"giftlist/internal/giftview"
)

// itemForm backs the add/edit item and suggestion forms.
type itemForm struct {
	ID    uuid.UUID
	Name  string
	Link  string
	Notes string
	Note  string
	Error string
}

// IsEdit reports whether the form edits an existing item.
func (f itemForm) IsEdit() bool {
	return f.ID != uuid.Nil
}

type filterOption struct {
	Value string
	Label string
}

var filterOptions = []filterOption{
	{Value: string(giftview.FilterAll), Label: "All items"},
	{Value: string(giftview.FilterUnpurchased), Label: "Not yet purchased"},
	{Value: string(giftview.FilterPurchased), Label: "Purchased"},
}

func panelTemplate(panel string) string {
	return "partials/" + strings.ReplaceAll(panel, "-", "_")
}

func panelData(ctrl *family.Controller, panel string) fiber.Map {
	switch panel {
	case family.PanelMyList:
		return myListData(ctrl)
	case family.PanelDirectory:
		return directoryData(ctrl)
	default:
		return recipientData(ctrl, "")
	}
}

func myListData(ctrl *family.Controller) fiber.Map {
	return fiber.Map{"Items": ctrl.MyItems()}
}

func directoryData(ctrl *family.Controller) fiber.Map {
	recipient, _ := ctrl.Recipient()
	return fiber.Map{
		"Roster":     ctrl.Roster(),
		"SelectedID": recipient.ID.String(),
	}
}

func recipientData(ctrl *family.Controller, alert string) fiber.Map {
	recipient, ok := ctrl.Recipient()
	filter, unpurchasedFirst := ctrl.Filter()
	return fiber.Map{
		"Recipient":        &recipient,
		"HasRecipient":     ok,
		"View":             ctrl.RecipientView(),
		"Filter":           string(filter),
		"Filters":          filterOptions,
		"UnpurchasedFirst": unpurchasedFirst,
		"Alert":            alert,
	}
}

// pageData merges every panel for a full page render.
func pageData(ctrl *family.Controller, tab string) fiber.Map {
	viewer := ctrl.Viewer()
	data := fiber.Map{
		"Title": "My list",
		"Tab":   tab,
		"User":  &viewer,
		"Form":  itemForm{},
	}
	if tab == "family" {
		data["Title"] = "Family"
	}
	for _, panel := range family.Panels {
		for k, v := range panelData(ctrl, panel) {
			data[k] = v
		}
	}
	return data
}
