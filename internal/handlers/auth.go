package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"giftlist/internal/config"
	"giftlist/internal/gate"
)

// AuthHandler handles OIDC authentication flows.
type AuthHandler struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	gate         *gate.Gate
	cfg          *config.Config
	log          logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler with OIDC configuration.
func NewAuthHandler(ctx context.Context, cfg *config.Config, g *gate.Gate, log logrus.FieldLogger) (*AuthHandler, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return &AuthHandler{
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
		gate:         g,
		cfg:          cfg,
		log:          log,
	}, nil
}

// Login initiates the OIDC login flow.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	state := generateState()

	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	sess.Set("oauth_state", state)

	url := h.oauth2Config.AuthCodeURL(state)
	return c.Redirect().To(url)
}

// Callback handles the OIDC callback after authentication.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}

	// The provider reports cancelled or failed sign-ins as an error parameter
	if reason := c.Query("error"); reason != "" {
		h.log.WithField("reason", reason).Info("Sign-in cancelled or failed at provider")
		return fiber.NewError(fiber.StatusUnauthorized, "Sign-in failed. Please try again.")
	}

	// Verify state
	savedState, _ := sess.Get("oauth_state").(string)
	if savedState == "" || savedState != c.Query("state") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state")
	}
	sess.Delete("oauth_state")

	// Exchange code for token
	oauth2Token, err := h.oauth2Config.Exchange(c.Context(), c.Query("code"))
	if err != nil {
		h.log.WithError(err).Warn("OIDC code exchange failed")
		return fiber.NewError(fiber.StatusBadRequest, "failed to exchange code")
	}

	// Extract and verify ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing id_token")
	}

	idToken, err := h.verifier.Verify(c.Context(), rawIDToken)
	if err != nil {
		h.log.WithError(err).Warn("OIDC id_token verification failed")
		return fiber.NewError(fiber.StatusBadRequest, "invalid id_token")
	}

	claimsMap := make(map[string]any)
	if err := idToken.Claims(&claimsMap); err != nil {
		return err
	}

	// Some OIDC providers only include minimal claims in the ID token
	userInfo, err := h.provider.UserInfo(c.Context(), oauth2.StaticTokenSource(oauth2Token))
	if err == nil {
		var userInfoClaims map[string]any
		if err := userInfo.Claims(&userInfoClaims); err == nil {
			for k, v := range userInfoClaims {
				// The subject always comes from the verified token
				if k == "sub" {
					continue
				}
				claimsMap[k] = v
			}
		}
	} else {
		h.log.WithError(err).Warn("Failed to fetch userinfo")
	}

	if h.cfg.IsDev() {
		h.log.WithField("claims", claimsMap).Debug("OIDC claims received")
	}

	user, err := h.gate.Admit(c.Context(), identityFromClaims(claimsMap))
	if errors.Is(err, gate.ErrAuthorizationDenied) {
		sess.Destroy()
		return c.Status(fiber.StatusForbidden).Render("denied", MergeBranding(fiber.Map{
			"Title":   "Not on the list",
			"Message": err.Error(),
		}, h.cfg))
	}
	if err != nil {
		return err
	}

	// New session id once signed in
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set("user_sub", user.Sub)

	return c.Redirect().To("/")
}

// Logout releases the session's live state and clears the session.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess != nil {
		h.gate.SignOut(sess.ID())
		sess.Destroy()
	}
	return c.Redirect().To("/login")
}

// identityFromClaims reads the standard OIDC claims.
func identityFromClaims(claims map[string]any) gate.Identity {
	id := gate.Identity{}
	id.Subject, _ = claims["sub"].(string)
	id.Email, _ = claims["email"].(string)
	id.DisplayName, _ = claims["name"].(string)
	id.PhotoURL, _ = claims["picture"].(string)

	switch v := claims["email_verified"].(type) {
	case bool:
		id.EmailVerified = v
	case string:
		id.EmailVerified = strings.EqualFold(v, "true")
	}
	return id
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
