// Package auth gates the tracker UI behind a Google identity. The OAuth
// dance itself is standard authorization-code flow; the only state kept
// locally is the session store.
package auth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Identity is what the provider tells us about a logged-in user.
type Identity struct {
	Email string
	Name  string
}

// Provider wraps the OAuth client configuration for the login flow.
type Provider struct {
	config *oauth2.Config
}

// NewProviderFromEnv builds a provider from the same client-credential
// sources the export tooling uses: inline JSON or a credentials file.
func NewProviderFromEnv(clientJSON, clientFile, redirectURL string) (*Provider, error) {
	var b []byte
	var err error
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, fmt.Errorf("no oauth client credentials configured")
	}

	cfg, err := google.ConfigFromJSON(b, oauthapi.UserinfoEmailScope, oauthapi.UserinfoProfileScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}
	cfg.RedirectURL = redirectURL

	return &Provider{config: cfg}, nil
}

// AuthURL returns the consent-screen URL for the given anti-CSRF state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the user's identity.
func (p *Provider) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("token exchange: %w", err)
	}

	svc, err := oauthapi.NewService(ctx, option.WithTokenSource(p.config.TokenSource(ctx, tok)))
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	if info.Email == "" {
		return Identity{}, fmt.Errorf("provider returned no email")
	}

	return Identity{Email: info.Email, Name: info.Name}, nil
}
