// Package giftview merges a recipient's items with every giver's private
// annotations and keeps the merged list consistent under live updates.
package giftview

import (
	"slices"

	"github.com/google/uuid"

	"giftlist/internal/models"
)

// GiverNote is one giver's non-empty note, attributed to that giver.
type GiverNote struct {
	GiverID uuid.UUID
	Note    string
}

// Aggregate is the giver-visible summary of all annotations on one item.
type Aggregate struct {
	// Purchased is true iff at least one giver marked the item purchased.
	Purchased bool
	// GiverNotes holds one entry per giver with a non-empty note, in annotation order.
	GiverNotes []GiverNote
	// YourNote and YourPurchased are the viewer's own annotation.
	YourNote      string
	YourPurchased bool
}

// Reduce folds an item's annotations into its aggregate as seen by viewerID.
func Reduce(annotations []models.GiverAnnotation, viewerID uuid.UUID) Aggregate {
	var agg Aggregate
	for i := range annotations {
		a := &annotations[i]
		if a.Purchased {
			agg.Purchased = true
		}
		if note := a.TrimmedNote(); note != "" {
			agg.GiverNotes = append(agg.GiverNotes, GiverNote{GiverID: a.GiverID, Note: note})
		}
		if a.GiverID == viewerID {
			agg.YourNote = a.TrimmedNote()
			agg.YourPurchased = a.Purchased
		}
	}
	return agg
}

// ItemView is one item of the selected recipient with its annotations merged in.
type ItemView struct {
	Item        models.Item
	Annotations []models.GiverAnnotation
	Aggregate
}

func newItemView(item models.Item, annotations []models.GiverAnnotation, viewerID uuid.UUID) ItemView {
	return ItemView{
		Item:        item,
		Annotations: annotations,
		Aggregate:   Reduce(annotations, viewerID),
	}
}

// ID returns the item id.
func (v *ItemView) ID() uuid.UUID {
	return v.Item.ID
}

// OwnerNotes returns the notes the recipient wrote on the item.
func (v *ItemView) OwnerNotes() string {
	return v.Item.Notes
}

// withViewerAnnotation returns a copy of v whose viewer annotation has been
// changed by edit, re-reduced. The viewer's annotation is appended if absent.
// The receiver's Annotations slice is never modified.
func (v ItemView) withViewerAnnotation(viewerID uuid.UUID, edit func(*models.GiverAnnotation)) ItemView {
	annotations := make([]models.GiverAnnotation, len(v.Annotations), len(v.Annotations)+1)
	copy(annotations, v.Annotations)

	idx := -1
	for i := range annotations {
		if annotations[i].GiverID == viewerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		annotations = append(annotations, models.GiverAnnotation{
			ItemID:  v.Item.ID,
			GiverID: viewerID,
			OwnerID: v.Item.OwnerID,
		})
		idx = len(annotations) - 1
	}
	edit(&annotations[idx])

	return newItemView(v.Item, annotations, viewerID)
}

func (v *ItemView) viewerAnnotation(viewerID uuid.UUID) (models.GiverAnnotation, bool) {
	for _, a := range v.Annotations {
		if a.GiverID == viewerID {
			return a, true
		}
	}
	return models.GiverAnnotation{}, false
}

// withoutBlankViewerAnnotation drops the viewer's annotation when it carries
// neither a mark nor a note.
func (v ItemView) withoutBlankViewerAnnotation(viewerID uuid.UUID) ItemView {
	annotations := slices.DeleteFunc(slices.Clone(v.Annotations), func(a models.GiverAnnotation) bool {
		return a.GiverID == viewerID && !a.Purchased && a.TrimmedNote() == ""
	})
	if len(annotations) == 0 {
		annotations = nil
	}
	return newItemView(v.Item, annotations, viewerID)
}
