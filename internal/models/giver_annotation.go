package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GiverAnnotation is a giver's private state for one item, keyed by (ItemID, GiverID).
// The item's owner never sees it.
type GiverAnnotation struct {
	ItemID    uuid.UUID `json:"item_id"`
	GiverID   uuid.UUID `json:"giver_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Purchased bool      `json:"purchased"`
	Note      string    `json:"note"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrimmedNote returns the note without surrounding whitespace.
func (a *GiverAnnotation) TrimmedNote() string {
	return strings.TrimSpace(a.Note)
}
