// Package oauth implements the browser redirect sign-in flow against
// third-party identity providers.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"solconta/internal/config"
)

// UserInfo is the identity returned by a provider after a successful
// code exchange.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Provider is a single OAuth identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google signs users in with their Google account.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogle creates the Google provider.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// Name implements Provider.
func (g *Google) Name() string { return "google" }

// AuthCodeURL returns the consent page URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's identity.
func (g *Google) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching user info: unexpected status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding user info: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("provider returned no email")
	}
	info.Email = strings.ToLower(info.Email)
	return &info, nil
}

// Registry holds the enabled providers by name.
type Registry map[string]Provider

// NewRegistry enables every provider configured in cfg.
func NewRegistry(cfg *config.Config) Registry {
	r := Registry{}
	if cfg.GoogleEnabled() {
		r.Register(NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL))
	}
	return r
}

// Register adds p under its name.
func (r Registry) Register(p Provider) {
	r[p.Name()] = p
}

// Get returns the provider called name.
func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[name]
	return p, ok
}
