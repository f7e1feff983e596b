// Package security builds the cookies that carry session and login state.
package security

import (
	"net/http"
	"time"
)

// CookieOptions configures cookie defaults.
type CookieOptions struct {
	Path   string
	Domain string
	// MaxAge in seconds; zero makes a browser-session cookie, negative
	// deletes the cookie.
	MaxAge int
	// Insecure drops the Secure attribute, for plain-http development.
	Insecure bool
	SameSite http.SameSite
}

// NewCookie creates an HttpOnly cookie, Secure unless Insecure is set, with
// Path "/" and SameSite=Lax unless overridden.
func NewCookie(name, value string, options CookieOptions) *http.Cookie {
	if options.Path == "" {
		options.Path = "/"
	}
	if options.SameSite == 0 {
		options.SameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   !options.Insecure,
		HttpOnly: true,
		SameSite: options.SameSite,
	}
}

// SessionCookie carries a session code for lifetime seconds. The server
// slides the session expiry, so the browser copy lives as long as the
// longest possible session.
func SessionCookie(name, code string, lifetime int64, secure bool) *http.Cookie {
	return NewCookie(name, code, CookieOptions{MaxAge: int(lifetime), Insecure: !secure})
}

// ClearCookie returns a cookie that deletes name in the browser.
func ClearCookie(name string, secure bool) *http.Cookie {
	cookie := NewCookie(name, "", CookieOptions{MaxAge: -1, Insecure: !secure})
	cookie.Expires = time.Unix(0, 0)
	return cookie
}
