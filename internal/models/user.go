package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// User represents a registered family member.
// Rows are created by an administrator; Sub is bound on the first sign-in.
type User struct {
	ID          uuid.UUID  `json:"id"`
	Sub         string     `json:"-"` // OIDC subject identifier, empty until first sign-in
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    string     `json:"photo_url"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Name returns the display name or a placeholder.
func (u *User) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return "(No name)"
}

// Initial returns the upper-cased first letter of the name, used as avatar fallback.
func (u *User) Initial() string {
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// IsBound reports whether the registration has been claimed by an OIDC identity.
func (u *User) IsBound() bool {
	return u.Sub != ""
}
