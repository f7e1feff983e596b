package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"net/http"
	"slices"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/security"
	"github.com/devmarvs/bear/session"
	"github.com/devmarvs/bear/txn"
)

// Cookies holding the login round trip.
const (
	NonceCookie = "oidc_nonce"
	StateCookie = "oidc_state"
)

const loginCookieAge = 10 * 60

// Handlers serves the login, logout and identity endpoints.
type Handlers struct {
	provider Exchanger
	disabled error
	sessions session.Store
	clock    clock.Clock
	cfg      config.Config
	landing  string
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithLanding sets where a completed login redirects.
func WithLanding(path string) Option {
	return func(h *Handlers) {
		h.landing = path
	}
}

// WithDisabled marks login unavailable; login endpoints answer with err.
func WithDisabled(err error) Option {
	return func(h *Handlers) {
		h.disabled = err
	}
}

// New creates the handlers. A nil provider disables login.
func New(provider Exchanger, sessions session.Store, clk clock.Clock, cfg config.Config, options ...Option) *Handlers {
	h := &Handlers{
		provider: provider,
		sessions: sessions,
		clock:    clk,
		cfg:      cfg,
		landing:  "/en/admin",
	}
	for _, opt := range options {
		opt(h)
	}
	if h.provider == nil && h.disabled == nil {
		h.disabled = apperr.Disabled("oidc.not.configured")
	}
	return h
}

// Mount registers the routes under /api. uow must wrap every route; auth
// guards the routes that need a logged-in administrator.
func (h *Handlers) Mount(app *bear.App, uow, auth bear.Middleware) {
	api := app.Group("/api", uow)
	api.GET("/oidc/start", h.Start)
	api.GET("/oidc/callback", h.Callback)
	api.POST("/logout", h.Logout, auth)
	api.GET("/me", h.Me, auth)
}

// Nonce derives the nonce sent to the provider from the preimage kept in
// the browser: the hex SHA-256 of the preimage bytes.
func Nonce(preimage string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(preimage)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Start redirects the browser to the provider.
func (h *Handlers) Start(ctx *bear.Context) error {
	if h.disabled != nil {
		return h.disabled
	}

	preimage, err := session.NewCode()
	if err != nil {
		return apperr.Internal("nonce generation failed", err)
	}
	nonce, err := Nonce(preimage)
	if err != nil {
		return apperr.Internal("nonce generation failed", err)
	}
	state, err := session.NewCode()
	if err != nil {
		return apperr.Internal("state generation failed", err)
	}

	insecure := !h.cfg.Sessions.SecureCookie
	http.SetCookie(ctx.ResponseWriter, security.NewCookie(NonceCookie, preimage, security.CookieOptions{MaxAge: loginCookieAge, Insecure: insecure}))
	http.SetCookie(ctx.ResponseWriter, security.NewCookie(StateCookie, state, security.CookieOptions{MaxAge: loginCookieAge, Insecure: insecure}))
	return ctx.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, nonce))
}

// Callback completes the login: it checks the state and nonce, requires a
// verified administrator email and stores a new session in the request
// transaction.
func (h *Handlers) Callback(ctx *bear.Context) error {
	if h.disabled != nil {
		return h.disabled
	}

	state := ctx.Query("state")
	if state == "" || state != ctx.Cookie(StateCookie) {
		return apperr.Unauthorized("oidc.state.mismatch", nil)
	}
	preimage := ctx.Cookie(NonceCookie)
	if preimage == "" {
		return apperr.Unauthorized("oidc.nonce.missing", nil)
	}
	nonce, err := Nonce(preimage)
	if err != nil {
		return apperr.Unauthorized("oidc.nonce.invalid", err)
	}
	code := ctx.Query("code")
	if code == "" {
		return apperr.BadRequest("missing code", nil)
	}

	identity, err := h.provider.Exchange(ctx.Request.Context(), code, nonce)
	if err != nil {
		return apperr.Unauthorized("oidc.exchange.failed", err)
	}
	if !identity.EmailVerified || identity.Email == "" {
		return apperr.Unauthorized("oidc.email.unverified", nil)
	}
	if !slices.Contains(h.cfg.OIDC.Admins, identity.Email) {
		ctx.Logger().Warn("login refused", slog.String("email", identity.Email))
		return apperr.Unauthorized("oidc.not.admin", nil)
	}

	created, err := session.New(h.clock.Now(), bear.KindOidc, identity.Email, session.Lifetimes(h.cfg.Sessions.Lifetimes))
	if err != nil {
		return apperr.Internal("session generation failed", err)
	}

	acc, err := txn.Write(ctx)
	if err != nil {
		return err
	}
	defer acc.Release()
	tx, err := acc.Get(ctx.Request.Context())
	if err != nil {
		return err
	}
	if err := h.sessions.Insert(ctx.Request.Context(), tx, created); err != nil {
		return err
	}
	ctx.Logger().Info("session created", slog.String("email", identity.Email))

	secure := h.cfg.Sessions.SecureCookie
	http.SetCookie(ctx.ResponseWriter, security.SessionCookie(h.cfg.Sessions.CookieName, created.Code, h.sessions.Lifetime(bear.KindOidc), secure))
	http.SetCookie(ctx.ResponseWriter, security.ClearCookie(NonceCookie, secure))
	http.SetCookie(ctx.ResponseWriter, security.ClearCookie(StateCookie, secure))
	return ctx.Redirect(http.StatusFound, h.landing)
}

// Logout deletes the caller's session and clears the cookie.
func (h *Handlers) Logout(ctx *bear.Context) error {
	if _, err := bear.OidcPrincipalFrom(ctx); err != nil {
		return err
	}

	acc, err := txn.Write(ctx)
	if err != nil {
		return err
	}
	defer acc.Release()
	tx, err := acc.Get(ctx.Request.Context())
	if err != nil {
		return err
	}
	if err := h.sessions.Delete(ctx.Request.Context(), tx, ctx.Cookie(h.cfg.Sessions.CookieName)); err != nil {
		return err
	}

	http.SetCookie(ctx.ResponseWriter, security.ClearCookie(h.cfg.Sessions.CookieName, h.cfg.Sessions.SecureCookie))
	return ctx.NoContent(http.StatusNoContent)
}

// Me reports the logged-in administrator.
func (h *Handlers) Me(ctx *bear.Context) error {
	principal, err := bear.OidcPrincipalFrom(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]string{"email": principal.Email})
}
