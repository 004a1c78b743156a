package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/oauth"
	"boomscore/identity/internal/service"
)

// GoogleStart sends the browser to Google's consent screen. The optional
// redirect query parameter names the frontend path to land on afterwards.
func (h HandlerSet) GoogleStart(c *gin.Context) {
	if h.google == nil || !h.google.Enabled() || h.states == nil {
		h.fail(c, oauth.ErrProviderDisabled)
		return
	}

	state, err := h.states.Issue(c.Request.Context(), safeRedirect(c.Query("redirect")))
	if err != nil {
		h.fail(c, err)
		return
	}
	target, err := h.google.AuthCodeURL(state)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// GoogleCallback finishes the flow. Failures land on the frontend login page with
// an error code instead of a JSON body, since a browser is on the other end.
func (h HandlerSet) GoogleCallback(c *gin.Context) {
	if h.google == nil || !h.google.Enabled() || h.states == nil {
		h.redirectWithError(c, oauth.ErrProviderDisabled)
		return
	}
	if providerErr := c.Query("error"); providerErr != "" {
		h.log.Info().Str("provider_error", providerErr).Msg("google sign-in cancelled")
		h.redirectToFrontend(c, "/login?error=access_denied")
		return
	}

	ctx := c.Request.Context()
	redirect, err := h.states.Consume(ctx, c.Query("state"))
	if err != nil {
		h.redirectWithError(c, err)
		return
	}

	profile, err := h.google.Exchange(ctx, c.Query("code"))
	if err != nil {
		h.redirectWithError(c, err)
		return
	}

	result, err := h.auth.LoginExternal(ctx, service.ExternalProfile{
		Provider:      oauth.ProviderGoogle,
		Subject:       profile.Subject,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		FirstName:     profile.GivenName,
		LastName:      profile.FamilyName,
		AvatarURL:     profile.Picture,
	}, middleware.ClientInfo(c))
	if err != nil {
		h.redirectWithError(c, err)
		return
	}

	h.transport.Write(c.Writer, result.AccessToken, result.RefreshToken)
	h.redirectToFrontend(c, redirect)
}

func (h HandlerSet) redirectWithError(c *gin.Context, err error) {
	status, code, _ := classify(err)
	if status == http.StatusInternalServerError || errors.Is(err, service.ErrUnauthorized) {
		h.log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("google sign-in failed")
	}
	h.redirectToFrontend(c, "/login?error="+url.QueryEscape(code))
}

func (h HandlerSet) redirectToFrontend(c *gin.Context, path string) {
	base := strings.TrimRight(h.cfg.FrontendURL, "/")
	c.Redirect(http.StatusFound, base+path)
}

// safeRedirect keeps only same-site relative paths.
func safeRedirect(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return raw
}
