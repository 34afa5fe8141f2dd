// Package gate decides whether a signed-in identity may use the application.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftlist/internal/db"
	"giftlist/internal/metrics"
	"giftlist/internal/models"
)

// ErrAuthorizationDenied means the identity has no registration.
var ErrAuthorizationDenied = errors.New("this app is limited to registered family members")

// Store is the registration lookup the gate needs.
type Store interface {
	FindRegistration(ctx context.Context, sub, email string) (*models.User, error)
	BindSubject(ctx context.Context, userID uuid.UUID, sub string) error
	MirrorProfile(ctx context.Context, userID uuid.UUID, displayName, email, photoURL string) error
}

// SessionCloser releases live state held for a browser session.
type SessionCloser interface {
	Close(sessionID string)
}

// Identity is what the identity provider tells us about a signed-in user.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
}

// Gate admits registered identities and tears sessions down on sign-out.
type Gate struct {
	store    Store
	sessions SessionCloser
	log      logrus.FieldLogger
}

func New(store Store, sessions SessionCloser, log logrus.FieldLogger) *Gate {
	return &Gate{store: store, sessions: sessions, log: log}
}

// Admit returns the registration for id, binding the subject on first
// sign-in and mirroring profile fields. Unregistered identities get
// ErrAuthorizationDenied. A failed mirror is logged and does not deny.
func (g *Gate) Admit(ctx context.Context, id Identity) (*models.User, error) {
	user, err := g.admit(ctx, id)
	switch {
	case errors.Is(err, ErrAuthorizationDenied):
		metrics.SignIns.WithLabelValues("denied").Inc()
	case err != nil:
		metrics.SignIns.WithLabelValues("error").Inc()
	default:
		metrics.SignIns.WithLabelValues("admitted").Inc()
	}
	return user, err
}

func (g *Gate) admit(ctx context.Context, id Identity) (*models.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, ErrAuthorizationDenied
	}

	// Only a verified email may claim an unbound registration.
	email := id.Email
	if !id.EmailVerified {
		email = ""
	}

	user, err := g.store.FindRegistration(ctx, id.Subject, email)
	if errors.Is(err, db.ErrUserNotFound) {
		g.log.WithField("email", id.Email).Warn("Sign-in denied: no registration")
		return nil, ErrAuthorizationDenied
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up registration: %w", err)
	}

	if !user.IsBound() {
		err := g.store.BindSubject(ctx, user.ID, id.Subject)
		if errors.Is(err, db.ErrUserNotFound) || errors.Is(err, db.ErrSubjectAlreadyUsed) {
			g.log.WithField("user_id", user.ID).Warn("Sign-in denied: registration claimed concurrently")
			return nil, ErrAuthorizationDenied
		}
		if err != nil {
			return nil, fmt.Errorf("failed to bind registration: %w", err)
		}
		user.Sub = id.Subject
		g.log.WithField("user_id", user.ID).Info("Registration bound to identity")
	}

	displayName := strings.TrimSpace(id.DisplayName)
	if displayName == "" {
		displayName = user.DisplayName
	}
	mirroredEmail := user.Email
	if id.EmailVerified && strings.TrimSpace(id.Email) != "" {
		mirroredEmail = strings.ToLower(strings.TrimSpace(id.Email))
	}

	if err := g.store.MirrorProfile(ctx, user.ID, displayName, mirroredEmail, id.PhotoURL); err != nil {
		g.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to mirror profile")
		return user, nil
	}
	user.DisplayName = displayName
	user.Email = mirroredEmail
	user.PhotoURL = id.PhotoURL

	return user, nil
}

// SignOut releases every live subscription held for the session.
func (g *Gate) SignOut(sessionID string) {
	if g.sessions != nil && sessionID != "" {
		g.sessions.Close(sessionID)
	}
}
