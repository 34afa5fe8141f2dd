package models

import (
	"time"

	"github.com/google/uuid"
)

// Link health status constants
const (
	HealthUnknown   = "unknown"
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// Item is one entry on somebody's wish list.
// OwnerID is whose list it is on; CreatedBy differs from it when a giver
// suggested the item for someone else.
type Item struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedBy uuid.UUID `json:"created_by"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	Notes     string    `json:"notes"` // owner-authored, visible to every viewer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LinkStatus    string     `json:"link_status"`
	LinkCheckedAt *time.Time `json:"link_checked_at"`
	LinkError     *string    `json:"link_error"`
}

// DisplayName returns the item name or a placeholder.
func (i *Item) DisplayName() string {
	if i.Name == "" {
		return "(no name)"
	}
	return i.Name
}

// IsSuggestion returns true if someone other than the owner added the item.
func (i *Item) IsSuggestion() bool {
	return i.CreatedBy != i.OwnerID
}

// IsLinkUnhealthy returns true if the last link check failed.
func (i *Item) IsLinkUnhealthy() bool {
	return i.Link != "" && i.LinkStatus == HealthUnhealthy
}

// NeedsLinkCheck returns true if the item has a link that was never checked or
// was checked longer than maxAge ago.
func (i *Item) NeedsLinkCheck(maxAge time.Duration) bool {
	if i.Link == "" {
		return false
	}
	if i.LinkCheckedAt == nil {
		return true
	}
	return time.Since(*i.LinkCheckedAt) > maxAge
}
