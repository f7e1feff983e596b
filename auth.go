package bear

import (
	"fmt"
	"strings"

	"github.com/devmarvs/bear/apperr"
)

// Authentication method tags.
const (
	KindOidc   = "Oidc"
	KindDevice = "Device"
)

// Authentication is a parsed, not yet verified credential.
type Authentication struct {
	Kind   string
	ID     string
	Secret string
}

// Principal represents an authenticated actor.
type Principal struct {
	// Kind names the authentication method that produced the principal.
	Kind string
	// Subject is the email, device id or similar identity.
	Subject string
	// Parent carries optional context such as a tenant id.
	Parent string
}

// CredentialReader extracts a credential from a request. It returns nil when
// no credential was presented.
type CredentialReader func(*Context) *Authentication

const (
	principalKey = "bear.principal"
	consumedKey  = "bear.principal.consumed"
)

// consumption tracks whether a handler read the attached principal.
type consumption struct {
	taken bool
}

// SetPrincipal attaches a principal to the request and resets the consumed flag.
func SetPrincipal(ctx *Context, principal Principal) {
	ctx.Set(principalKey, principal)
	ctx.Set(consumedKey, &consumption{})
}

// PrincipalConsumed reports whether a principal is attached and whether a
// handler has extracted it.
func PrincipalConsumed(ctx *Context) (attached, consumed bool) {
	value, ok := ctx.Get(consumedKey)
	if !ok {
		return false, false
	}
	flag, ok := value.(*consumption)
	if !ok {
		return false, false
	}
	return true, flag.taken
}

// AttachedPrincipal returns the principal attached to the request without
// marking it consumed.
func AttachedPrincipal(ctx *Context) (Principal, bool) {
	value, ok := ctx.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

// PrincipalFrom returns the attached principal when its method tag matches
// kind, and marks it consumed. A mismatch leaves the consumed flag untouched.
func PrincipalFrom(ctx *Context, kind string) (Principal, error) {
	value, ok := ctx.Get(principalKey)
	if !ok {
		return Principal{}, apperr.Unauthorized("principal.missing", nil)
	}
	principal, ok := value.(Principal)
	if !ok {
		return Principal{}, apperr.Unauthorized("principal.missing", nil)
	}
	if principal.Kind != kind {
		return Principal{}, apperr.Unauthorized(fmt.Sprintf("principal.kind.mismatch:a:%s/e:%s", principal.Kind, kind), nil)
	}

	if value, ok := ctx.Get(consumedKey); ok {
		if flag, ok := value.(*consumption); ok {
			flag.taken = true
		}
	}
	return principal, nil
}

// OidcPrincipal is the identity produced by an OIDC login.
type OidcPrincipal struct {
	Email string
}

// OidcPrincipalFrom extracts an OIDC-derived principal.
func OidcPrincipalFrom(ctx *Context) (OidcPrincipal, error) {
	principal, err := PrincipalFrom(ctx, KindOidc)
	if err != nil {
		return OidcPrincipal{}, err
	}
	return OidcPrincipal{Email: principal.Subject}, nil
}

// DevicePrincipal is the identity of an enrolled device.
type DevicePrincipal struct {
	DeviceID string
	Parent   string
}

// DevicePrincipalFrom extracts a device principal.
func DevicePrincipalFrom(ctx *Context) (DevicePrincipal, error) {
	principal, err := PrincipalFrom(ctx, KindDevice)
	if err != nil {
		return DevicePrincipal{}, err
	}
	return DevicePrincipal{DeviceID: principal.Subject, Parent: principal.Parent}, nil
}

// ReadCredentials returns a reader that accepts an "Authorization: Device <id>
// <token>" header or, failing that, the session cookie as an OIDC credential.
func ReadCredentials(cookieName string) CredentialReader {
	return func(ctx *Context) *Authentication {
		if header := ctx.Request.Header.Get("Authorization"); header != "" {
			parts := strings.Fields(header)
			if len(parts) > 0 && parts[0] == KindDevice {
				if id, token, ok := ParseHeader(parts); ok {
					return &Authentication{Kind: KindDevice, ID: id, Secret: token}
				}
			}
		}
		if code := ctx.Cookie(cookieName); code != "" {
			return &Authentication{Kind: KindOidc, Secret: code}
		}
		return nil
	}
}

// ParseHeader splits "<scheme> <id> <token>" header parts.
func ParseHeader(parts []string) (id, token string, ok bool) {
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
