package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"giftlist/internal/db"
	"giftlist/internal/family"
	"giftlist/internal/gate"
	"giftlist/internal/giftview"
)

func TestWriteEvent(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
		want  string
	}{
		{
			name:  "single line",
			event: "recipient",
			data:  "<p>hi</p>",
			want:  "event: recipient\ndata: <p>hi</p>\n\n",
		},
		{
			name:  "multi line html keeps every line",
			event: "my-list",
			data:  "<ul>\n  <li>Scarf</li>\n</ul>\n",
			want:  "event: my-list\ndata: <ul>\ndata:   <li>Scarf</li>\ndata: </ul>\n\n",
		},
		{
			name:  "carriage returns stripped",
			event: "directory",
			data:  "a\r\nb",
			want:  "event: directory\ndata: a\ndata: b\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeEvent(&buf, tt.event, []byte(tt.data)); err != nil {
				t.Fatalf("writeEvent: %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIdentityFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   gate.Identity
	}{
		{
			name: "full profile",
			claims: map[string]any{
				"sub": "abc", "email": "a@example.com", "email_verified": true,
				"name": "Alice", "picture": "https://example.com/a.png",
			},
			want: gate.Identity{
				Subject: "abc", Email: "a@example.com", EmailVerified: true,
				DisplayName: "Alice", PhotoURL: "https://example.com/a.png",
			},
		},
		{
			name:   "verified as string",
			claims: map[string]any{"sub": "abc", "email": "a@example.com", "email_verified": "True"},
			want:   gate.Identity{Subject: "abc", Email: "a@example.com", EmailVerified: true},
		},
		{
			name:   "unverified and wrong types ignored",
			claims: map[string]any{"sub": "abc", "email": 42, "name": nil},
			want:   gate.Identity{Subject: "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, identityFromClaims(tt.claims)); diff != "" {
				t.Errorf("identity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&family.InputError{Message: "Item name is required."}, "Item name is required."},
		{fmt.Errorf("%w: %w", family.ErrWriteFailed, db.ErrOwnItem), "You cannot mark items on your own list."},
		{fmt.Errorf("%w: %w", family.ErrWriteFailed, errors.New("timeout")), "Could not save your change. Please try again."},
		{giftview.ErrUnknownItem, "That item no longer exists."},
		{family.ErrSelfSelected, family.ErrSelfSelected.Error()},
		{errors.New("boom"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		if got := userMessage(tt.err); got != tt.want {
			t.Errorf("userMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAlertHTML_Escapes(t *testing.T) {
	got := AlertHTML(`<script>alert("x")</script>`)
	want := `<div class="alert" role="alert">&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</div>`
	if got != want {
		t.Errorf("AlertHTML = %q, want %q", got, want)
	}
}

func TestPanelTemplate(t *testing.T) {
	for panel, want := range map[string]string{
		family.PanelMyList:    "partials/my_list",
		family.PanelDirectory: "partials/directory",
		family.PanelRecipient: "partials/recipient",
	} {
		if got := panelTemplate(panel); got != want {
			t.Errorf("panelTemplate(%q) = %q, want %q", panel, got, want)
		}
	}
}
