package handlers

import (
	"github.com/gofiber/fiber/v3"

	"giftlist/internal/family"
	"giftlist/internal/giftview"
	"giftlist/internal/validation"
)

// Family renders the Family tab: roster and the selected recipient's list.
func (h *AppHandler) Family(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	return c.Render("family", MergeBranding(pageData(ctrl, "family"), h.cfg))
}

// SelectRecipient switches the recipient list to another family member.
func (h *AppHandler) SelectRecipient(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	id, err := paramID(c, "uid")
	if err != nil {
		return err
	}

	alert := ""
	if err := ctrl.SelectRecipient(c.Context(), id); err != nil {
		alert = userMessage(err)
	}

	data := recipientData(ctrl, alert)
	for k, v := range directoryData(ctrl) {
		data[k] = v
	}
	return c.Render("partials/select_response", data, "")
}

// RecipientItems re-renders the recipient list with new filter and sort
// settings taken from the query string.
func (h *AppHandler) RecipientItems(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}

	ctrl.SetFilter(giftview.ParseFilter(c.Query("filter")))
	ctrl.SetSortUnpurchasedFirst(c.Query("sort") == "unpurchased")

	return c.Render(panelTemplate(family.PanelRecipient), recipientData(ctrl, ""), "")
}

// SuggestItem adds an item to the selected recipient's list.
func (h *AppHandler) SuggestItem(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}

	form := itemForm{
		Name: c.FormValue("name"),
		Link: c.FormValue("link"),
		Note: c.FormValue("note"),
	}
	_, err = ctrl.SuggestItem(c.Context(), validation.ItemInput{Name: form.Name, Link: form.Link}, form.Note)
	if err != nil {
		form.Error = userMessage(err)
		return c.Render("partials/suggest_form", fiber.Map{"Form": form}, "")
	}
	return c.Render("partials/suggest_form", fiber.Map{"Form": itemForm{}}, "")
}

// TogglePurchase flips the viewer's purchase mark. The list re-renders with
// the new mark at once; a failed write comes back with an alert and the
// mark restored.
func (h *AppHandler) TogglePurchase(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	alert := ""
	if _, err := ctrl.TogglePurchase(c.Context(), id); err != nil {
		alert = userMessage(err)
	}
	return c.Render(panelTemplate(family.PanelRecipient), recipientData(ctrl, alert), "")
}

// SaveNote stores the viewer's private note on an item.
func (h *AppHandler) SaveNote(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	alert := ""
	if err := ctrl.SaveNote(c.Context(), id, c.FormValue("note")); err != nil {
		alert = userMessage(err)
	}
	return c.Render(panelTemplate(family.PanelRecipient), recipientData(ctrl, alert), "")
}
