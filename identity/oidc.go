package identity

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// tokenRefreshMargin renews the cached ID token slightly before its
// actual expiry so callers never receive a token about to lapse.
const tokenRefreshMargin = 30 * time.Second

var _ Provider = (*OIDCProvider)(nil)

// OIDCProvider implements Provider against any OpenID Connect issuer.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	conf     *oauth2.Config

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
	current     *User
	rawIDToken  string
	tokenExpiry time.Time
	listeners   []func(*User)
}

// OIDCConfig carries the issuer registration for an OIDCProvider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// NewOIDCProvider discovers the issuer's endpoints and returns a ready
// provider. Discovery requires network access to the issuer.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("[NewOIDCProvider] issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[NewOIDCProvider] client id is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewOIDCProvider] discovering %s", cfg.Issuer)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// PasswordSignIn authenticates through the resource-owner password grant.
func (p *OIDCProvider) PasswordSignIn(ctx context.Context, email, password string) (*User, error) {
	token, err := p.conf.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, errors.Wrap(err, "[PasswordSignIn] password grant")
	}
	return p.adoptToken(ctx, token)
}

// FederatedSignIn exchanges an authorization code from a popup/redirect
// flow for tokens.
func (p *OIDCProvider) FederatedSignIn(ctx context.Context, code string) (*User, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "[FederatedSignIn] code exchange")
	}
	return p.adoptToken(ctx, token)
}

// IDToken returns the cached ID token, renewing it through the refresh
// token source when it is within the refresh margin of expiry.
func (p *OIDCProvider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.tokenSource == nil {
		p.mu.Unlock()
		return "", errors.New("[IDToken] not signed in")
	}
	if p.rawIDToken != "" && time.Until(p.tokenExpiry) > tokenRefreshMargin {
		token := p.rawIDToken
		p.mu.Unlock()
		return token, nil
	}
	source := p.tokenSource
	p.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", errors.Wrap(err, "[IDToken] refreshing token")
	}
	if _, err := p.adoptToken(ctx, token); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rawIDToken != "" {
		return p.rawIDToken, nil
	}
	// Issuers that omit id_token on refresh still return a usable
	// access token.
	return token.AccessToken, nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *OIDCProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnAuthStateChanged registers a state-change callback.
func (p *OIDCProvider) OnAuthStateChanged(callback func(*User)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, callback)
}

// SignOut discards the cached tokens and notifies listeners.
func (p *OIDCProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.tokenSource = nil
	p.current = nil
	p.rawIDToken = ""
	p.tokenExpiry = time.Time{}
	listeners := append([]func(*User){}, p.listeners...)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(nil)
	}
	return nil
}

// adoptToken verifies the ID token carried by an oauth2 token, extracts
// the user claims, and installs the refreshing token source.
func (p *OIDCProvider) adoptToken(ctx context.Context, token *oauth2.Token) (*User, error) {
	rawIDToken, _ := token.Extra("id_token").(string)

	var user *User
	expiry := token.Expiry
	if rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, errors.Wrap(err, "[adoptToken] id token verification")
		}
		var claims struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, errors.Wrap(err, "[adoptToken] extracting claims")
		}
		user = &User{UID: claims.Sub, Email: claims.Email, DisplayName: claims.Name}
		expiry = idToken.Expiry
	}

	p.mu.Lock()
	p.tokenSource = p.conf.TokenSource(ctx, token)
	p.rawIDToken = rawIDToken
	p.tokenExpiry = expiry
	if user != nil {
		p.current = user
	}
	current := p.current
	listeners := append([]func(*User){}, p.listeners...)
	p.mu.Unlock()

	if user != nil {
		for _, listener := range listeners {
			listener(current)
		}
	}
	return current, nil
}
