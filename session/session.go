// Package session persists login sessions keyed by opaque random codes.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/db"
)

var (
	// ErrNotFound indicates no session matches the presented code.
	ErrNotFound = errors.New("session not found")
	// ErrExpired indicates the session expiry has been reached.
	ErrExpired = errors.New("session expired")
	// ErrSubjectMismatch indicates a device credential naming another subject.
	ErrSubjectMismatch = errors.New("session subject mismatch")
)

// CodeBytes is the entropy of a session code.
const CodeBytes = 16

// Session is a persisted login. Code is the plaintext secret handed to the
// client; only its hash is stored.
type Session struct {
	Code    string
	Kind    string
	Subject string
	Parent  string
	Expires clock.Instant
}

// Store is the session lifecycle used by the authentication middleware. All
// operations run inside the caller's transaction.
type Store interface {
	Find(ctx context.Context, tx db.QueryDB, auth bear.Authentication) (Session, error)
	Extend(ctx context.Context, tx db.QueryDB, code string, expires clock.Instant) error
	Delete(ctx context.Context, tx db.QueryDB, code string) error
	Insert(ctx context.Context, tx db.QueryDB, session Session) error
	Lifetime(kind string) int64
	Principal(session Session) bear.Principal
}

// DefaultLifetime applies to kinds without a configured lifetime.
const DefaultLifetime int64 = 24 * 60 * 60

// Lifetimes maps a session kind to its sliding lifetime in seconds.
type Lifetimes map[string]int64

// DefaultLifetimes returns the built-in lifetimes.
func DefaultLifetimes() Lifetimes {
	return Lifetimes{
		bear.KindOidc:   14 * 24 * 60 * 60,
		bear.KindDevice: 90 * 24 * 60 * 60,
	}
}

// For returns the lifetime of kind, looked up as given and then lowercased
// the way loaded config stores it.
func (l Lifetimes) For(kind string) int64 {
	if lifetime, ok := l[kind]; ok && lifetime > 0 {
		return lifetime
	}
	if lifetime, ok := l[strings.ToLower(kind)]; ok && lifetime > 0 {
		return lifetime
	}
	return DefaultLifetime
}

// New creates a session with a fresh code expiring one lifetime after now.
func New(now clock.Instant, kind, subject string, lifetimes Lifetimes) (Session, error) {
	code, err := NewCode()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Code:    code,
		Kind:    kind,
		Subject: subject,
		Expires: now + lifetimes.For(kind),
	}, nil
}

// NewCode returns a URL-safe random session code.
func NewCode() (string, error) {
	buf := make([]byte, CodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the at-rest key of a session code.
func Hash(code string) string {
	sum := blake2b.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// PrincipalOf maps a session to the principal it authenticates.
func PrincipalOf(session Session) bear.Principal {
	return bear.Principal{Kind: session.Kind, Subject: session.Subject, Parent: session.Parent}
}
