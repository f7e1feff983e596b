package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/httpclient"
)

func discoveryServer(t *testing.T, failures int32) *httptest.Server {
	t.Helper()
	var calls int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&calls, 1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                server.URL,
			"authorization_endpoint":                server.URL + "/auth",
			"token_endpoint":                        server.URL + "/token",
			"jwks_uri":                              server.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewProviderDiscovery(t *testing.T) {
	issuer := discoveryServer(t, 1)
	retry := httpclient.DefaultRetryOptions()
	retry.Backoff = func(int) time.Duration { return 0 }

	provider, err := NewProvider(context.Background(), config.OIDC{
		Issuer:       issuer.URL,
		ClientID:     "bear",
		ClientSecret: "s3cret",
		PublicURL:    "https://bear.example/",
	}, httpclient.New(httpclient.Options{Retry: retry}))
	if err != nil {
		t.Fatalf("discovery: %v", err)
	}

	login, err := url.Parse(provider.AuthCodeURL("st4te", "n0nce"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	query := login.Query()
	if login.Path != "/auth" || query.Get("state") != "st4te" || query.Get("nonce") != "n0nce" {
		t.Fatalf("unexpected login url %s", login)
	}
	if query.Get("redirect_uri") != "https://bear.example"+CallbackPath {
		t.Fatalf("unexpected redirect %q", query.Get("redirect_uri"))
	}
}

func TestNewProviderDisabled(t *testing.T) {
	_, err := NewProvider(context.Background(), config.OIDC{Issuer: "https://issuer.example", ClientID: "bear"}, nil)
	if !apperr.HasCode(err, apperr.CodeDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestNewProviderDiscoveryFailure(t *testing.T) {
	issuer := discoveryServer(t, 100)
	_, err := NewProvider(context.Background(), config.OIDC{
		Issuer:       issuer.URL,
		ClientID:     "bear",
		ClientSecret: "s3cret",
	}, httpclient.New(httpclient.Options{}))
	if err == nil || errors.Is(err, ErrNoIDToken) {
		t.Fatalf("expected discovery error, got %v", err)
	}
}
