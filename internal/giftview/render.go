package giftview

import (
	"github.com/google/uuid"
)

const (
	MessageNoSelection = "Choose someone to see their list."
	MessageLoading     = "Loading…"
	MessageNoItems     = "No items on this list yet."
	MessageNoMatches   = "No items match the current filter."
)

// RenderInput is everything the rendered list depends on.
type RenderInput struct {
	State            State
	Views            []ItemView
	Filter           Filter
	UnpurchasedFirst bool
	ViewerID         uuid.UUID
	// Names maps user ids to display names for note attribution.
	Names map[uuid.UUID]string
}

// NoteLine is one attributed giver note on a card.
type NoteLine struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Mine   bool   `json:"mine"`
}

// Card is the rendered form of one item.
type Card struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Name          string     `json:"name"`
	Link          string     `json:"link,omitempty"`
	LinkUnhealthy bool       `json:"link_unhealthy"`
	OwnerNotes    string     `json:"owner_notes,omitempty"`
	SuggestedBy   string     `json:"suggested_by,omitempty"` // set when a giver added the item
	Purchased     bool       `json:"purchased"`
	GiverNotes    []NoteLine `json:"giver_notes"`
	YourNote      string     `json:"your_note"`
	YourPurchased bool       `json:"your_purchased"`
	// PurchaseAction labels the viewer's own toggle.
	PurchaseAction string `json:"purchase_action"`
}

// Rendered is the list shown for the selected recipient.
type Rendered struct {
	Cards        []Card `json:"cards"`
	EmptyMessage string `json:"empty_message,omitempty"`
	Total        int    `json:"total"`
	Purchased    int    `json:"purchased"`
}

// Render derives the displayed list. It is pure: the input is not modified
// and equal inputs give equal output.
func Render(in RenderInput) Rendered {
	switch in.State {
	case StateEmpty:
		return Rendered{EmptyMessage: MessageNoSelection}
	case StateLoading:
		return Rendered{EmptyMessage: MessageLoading}
	}

	out := Rendered{Total: len(in.Views)}
	for i := range in.Views {
		if in.Views[i].Purchased {
			out.Purchased++
		}
	}

	if len(in.Views) == 0 {
		out.EmptyMessage = MessageNoItems
		return out
	}

	visible := in.Filter.Apply(in.Views)
	if in.UnpurchasedFirst {
		SortUnpurchasedFirst(visible)
	}
	if len(visible) == 0 {
		out.EmptyMessage = MessageNoMatches
		return out
	}

	out.Cards = make([]Card, len(visible))
	for i := range visible {
		out.Cards[i] = renderCard(&visible[i], in.ViewerID, in.Names)
	}
	return out
}

func renderCard(v *ItemView, viewerID uuid.UUID, names map[uuid.UUID]string) Card {
	card := Card{
		ItemID:         v.Item.ID,
		Name:           v.Item.DisplayName(),
		Link:           v.Item.Link,
		LinkUnhealthy:  v.Item.IsLinkUnhealthy(),
		OwnerNotes:     v.OwnerNotes(),
		Purchased:      v.Purchased,
		YourNote:       v.YourNote,
		YourPurchased:  v.YourPurchased,
		PurchaseAction: "Mark purchased",
	}
	if v.YourPurchased {
		card.PurchaseAction = "Unmark purchased"
	}
	if v.Item.IsSuggestion() {
		card.SuggestedBy = nameOf(names, v.Item.CreatedBy)
	}

	if len(v.GiverNotes) > 0 {
		card.GiverNotes = make([]NoteLine, len(v.GiverNotes))
		for i, n := range v.GiverNotes {
			line := NoteLine{Text: n.Note, Mine: n.GiverID == viewerID}
			if line.Mine {
				line.Author = "You"
			} else {
				line.Author = nameOf(names, n.GiverID)
			}
			card.GiverNotes[i] = line
		}
	}
	return card
}

func nameOf(names map[uuid.UUID]string, id uuid.UUID) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return "Someone"
}
