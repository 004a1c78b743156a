// Package oauth signs users in through Google's OAuth 2.0 authorization code flow.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"boomscore/identity/internal/config"
)

var (
	ErrProviderDisabled = errors.New("external identity provider not configured")
	ErrEmailNotVerified = errors.New("provider email not verified")
	ErrInvalidState     = errors.New("invalid oauth state")
)

const (
	ProviderGoogle = "google"
	userInfoURL    = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Profile is the subset of the Google userinfo document the identity service uses.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	enabled     bool
}

// NewGoogleProvider builds the provider from configuration. Missing credentials
// leave it disabled rather than failing startup.
func NewGoogleProvider(cfg config.GoogleConfig, log zerolog.Logger) *GoogleProvider {
	enabled := strings.TrimSpace(cfg.ClientID) != "" && strings.TrimSpace(cfg.ClientSecret) != ""
	if !enabled {
		log.Warn().Msg("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, google sign-in disabled")
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		enabled:     enabled,
	}
}

// WithEndpoints points the provider at different token and userinfo URLs.
func (p *GoogleProvider) WithEndpoints(endpoint oauth2.Endpoint, userInfo string) *GoogleProvider {
	cp := *p
	conf := *p.config
	conf.Endpoint = endpoint
	cp.config = &conf
	cp.userInfoURL = userInfo
	return &cp
}

func (p *GoogleProvider) Enabled() bool {
	return p.enabled
}

func (p *GoogleProvider) AuthCodeURL(state string) (string, error) {
	if !p.enabled {
		return "", ErrProviderDisabled
	}
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// Exchange trades an authorization code for the caller's verified profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Profile, error) {
	if !p.enabled {
		return Profile{}, ErrProviderDisabled
	}
	if strings.TrimSpace(code) == "" {
		return Profile{}, fmt.Errorf("%w: missing code", ErrInvalidState)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Profile{}, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Subject == "" || profile.Email == "" {
		return Profile{}, errors.New("userinfo missing subject or email")
	}
	if !profile.EmailVerified {
		return Profile{}, ErrEmailNotVerified
	}
	return profile, nil
}
