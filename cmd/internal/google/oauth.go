package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// Grant is the result of a successful code exchange.
type Grant struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	// Subject is the Google account id ("sub" of the id_token), empty when absent.
	Subject string
}

// OAuth runs the authorization-code flow.
type OAuth struct {
	cfg *oauth2.Config
}

// NewOAuth constructs an OAuth client from cfg.
func NewOAuth(cfg Config) (*OAuth, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	endpoint := googleoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &OAuth{cfg: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}}, nil
}

// AuthCodeURL returns the consent URL. Offline access and a forced consent prompt
// make Google return a refresh token on every link.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Grant{}, fmt.Errorf("google: empty authorization code")
	}

	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return Grant{}, fmt.Errorf("google: exchange: %w", err)
	}

	g := Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		g.Subject = subjectOf(raw)
	}
	return g, nil
}

// tokenSource returns a refreshing source seeded with a stored token.
func (o *OAuth) tokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
	return o.cfg.TokenSource(ctx, t)
}

// subjectOf reads "sub" without verifying the signature. The id_token arrived
// directly from Google's token endpoint over TLS, which authenticates it.
func subjectOf(idToken string) string {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
