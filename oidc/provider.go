// Package oidc logs administrators in through an OpenID Connect provider and
// turns a verified login into a session.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/httpclient"
)

// CallbackPath is where the provider redirects after login.
const CallbackPath = "/api/oidc/callback"

var (
	// ErrNoIDToken indicates the token response carried no id_token.
	ErrNoIDToken = errors.New("oidc: token response has no id_token")
	// ErrNonceMismatch indicates the ID token was minted for another login.
	ErrNonceMismatch = errors.New("oidc: nonce mismatch")
)

// Identity is the verified subset of ID token claims.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// Exchanger drives the authorization code flow.
type Exchanger interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (Identity, error)
}

// Provider is an Exchanger backed by a discovered OIDC issuer.
type Provider struct {
	client   *http.Client
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

// NewProvider discovers cfg.Issuer. A configuration without a client secret
// is reported as disabled. A nil client gets a retrying default.
func NewProvider(ctx context.Context, cfg config.OIDC, client *http.Client) (*Provider, error) {
	if err := cfg.Enabled(); err != nil {
		return nil, err
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{Retry: httpclient.DefaultRetryOptions()})
	}
	ctx = gooidc.ClientContext(ctx, client)

	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", cfg.Issuer, err)
	}

	return &Provider{
		client: client,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  strings.TrimRight(cfg.PublicURL, "/") + CallbackPath,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL builds the provider login URL.
func (p *Provider) AuthCodeURL(state, nonce string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, gooidc.Nonce(nonce))
}

// Exchange redeems code and verifies the returned ID token, including its
// nonce.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (Identity, error) {
	ctx = gooidc.ClientContext(ctx, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("oidc token exchange: %w", err)
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return Identity{}, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("oidc id_token verification: %w", err)
	}
	if idToken.Nonce != nonce {
		return Identity{}, ErrNonceMismatch
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("oidc claims: %w", err)
	}

	return Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}
