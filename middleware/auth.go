package middleware

import (
	"errors"
	"log/slog"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/metrics"
	"github.com/devmarvs/bear/session"
	"github.com/devmarvs/bear/txn"
)

// ErrPrincipalNotConsumed reports a handler under an authenticated scope
// that never extracted the principal, usually a mis-routed URL.
var ErrPrincipalNotConsumed = errors.New("principal not extracted in a handler under authenticated scope")

type authConfig struct {
	required    bool
	credentials bear.CredentialReader
	recorder    txn.Recorder
	metrics     *metrics.Registry
}

// AuthOption customizes auth middleware behavior.
type AuthOption func(*authConfig)

// AuthRequired rejects requests that do not resolve a principal.
func AuthRequired(required bool) AuthOption {
	return func(cfg *authConfig) {
		cfg.required = required
	}
}

// AuthCredentials sets how credentials are read from a request.
func AuthCredentials(reader bear.CredentialReader) AuthOption {
	return func(cfg *authConfig) {
		cfg.credentials = reader
	}
}

// AuthTxnRecorder observes the session transaction's events.
func AuthTxnRecorder(recorder txn.Recorder) AuthOption {
	return func(cfg *authConfig) {
		cfg.recorder = recorder
	}
}

// AuthMetrics counts authentication outcomes.
func AuthMetrics(registry *metrics.Registry) AuthOption {
	return func(cfg *authConfig) {
		cfg.metrics = registry
	}
}

// Authenticate resolves the request credential against the session store.
// The session lookup runs in its own transaction, committed before the
// handler runs: an expired session is deleted, a live one has its expiry
// slid forward by its lifetime. A resolved principal must be extracted by
// the handler, or the request fails; when the handler already failed its
// error is kept and joined with ErrPrincipalNotConsumed.
func Authenticate(database txn.Beginner, sessions session.Store, clk clock.Clock, options ...AuthOption) bear.Middleware {
	cfg := authConfig{credentials: bear.ReadCredentials("session")}
	for _, opt := range options {
		opt(&cfg)
	}

	count := func(result string) {
		if cfg.metrics != nil {
			cfg.metrics.Auth(result)
		}
	}

	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) error {
			var authErr error
			if auth := cfg.credentials(ctx); auth != nil {
				principal, err := verify(ctx, database, sessions, clk, *auth, cfg.recorder)
				switch {
				case err == nil:
					bear.SetPrincipal(ctx, principal)
					count(metrics.AuthAccepted)
					ctx.Logger().Debug("verified principal",
						slog.String("kind", principal.Kind),
						slog.String("subject", principal.Subject),
					)
				case apperr.IsAuth(err):
					authErr = err
					if apperr.HasCode(err, apperr.CodeExpired) {
						count(metrics.AuthExpired)
					} else {
						count(metrics.AuthRejected)
					}
					ctx.Logger().Warn("credential rejected", slog.String("kind", auth.Kind), slog.String("error", err.Error()))
				default:
					return err
				}
			} else {
				count(metrics.AuthAnonymous)
			}

			if attached, _ := bear.PrincipalConsumed(ctx); !attached && cfg.required {
				ctx.Logger().Warn("principal not found in auth middleware")
				if apperr.HasCode(authErr, apperr.CodeExpired) {
					return authErr
				}
				return apperr.Unauthorized("request.not.authenticated", authErr)
			}

			err := next(ctx)
			if attached, consumed := bear.PrincipalConsumed(ctx); attached && !consumed {
				if err == nil {
					return apperr.Internal("principal not consumed", ErrPrincipalNotConsumed)
				}
				// The handler's error still decides the response.
				ctx.Logger().Error("principal not consumed", slog.String("error", err.Error()))
				return errors.Join(err, ErrPrincipalNotConsumed)
			}
			return err
		}
	}
}

// verify turns a parsed credential into a principal.
func verify(ctx *bear.Context, database txn.Beginner, sessions session.Store, clk clock.Clock, auth bear.Authentication, recorder txn.Recorder) (bear.Principal, error) {
	reqCtx := ctx.Request.Context()
	acc := txn.NewStandalone(database, recorder)
	tx, err := acc.Get(reqCtx)
	if err != nil {
		return bear.Principal{}, err
	}

	found, err := sessions.Find(reqCtx, tx, auth)
	if err != nil {
		_ = acc.Rollback()
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrSubjectMismatch) {
			return bear.Principal{}, apperr.Unauthorized("session.not.found", err)
		}
		return bear.Principal{}, err
	}

	now := clk.Now()
	if found.Expires <= now {
		if err := sessions.Delete(reqCtx, tx, found.Code); err != nil {
			_ = acc.Rollback()
			return bear.Principal{}, err
		}
		if err := acc.Commit(); err != nil {
			return bear.Principal{}, err
		}
		return bear.Principal{}, apperr.Expired(session.ErrExpired)
	}

	if err := sessions.Extend(reqCtx, tx, found.Code, now+sessions.Lifetime(found.Kind)); err != nil {
		_ = acc.Rollback()
		return bear.Principal{}, err
	}
	if err := acc.Commit(); err != nil {
		return bear.Principal{}, err
	}
	return sessions.Principal(found), nil
}
