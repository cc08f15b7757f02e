package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

// Blacklist answers whether an access-token fingerprint has been revoked
// before its natural expiry. Implemented by the ephemeral guard store.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, tokenFP string) (bool, error)
}

// AuthnMiddleware authenticates the bearer token on every protected
// route: extract, blacklist check, then signature/claims verification.
//
// The blacklist check runs BEFORE verification so a blacklisted but
// still cryptographically valid token can never be accepted because the
// cache lookup was skipped. Blacklist lookups are fail-closed: if the
// guard store cannot answer, the request is rejected rather than letting
// a revoked token back in.
func AuthnMiddleware(v jwtx.Verifier, bl Blacklist) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, code := BearerToken(r)
			if code != "" {
				writeBearerError(w, http.StatusUnauthorized, code, "missing or malformed bearer token")
				return
			}

			revoked, err := bl.IsBlacklisted(ctx, cryptox.FingerprintToken(raw))
			if err != nil {
				log.Error("blacklist lookup failed", "err", err)
				writeBearerError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "token revocation state unavailable")
				return
			}
			if revoked {
				writeBearerError(w, http.StatusUnauthorized, CodeTokenRevoked, "token has been revoked")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				code, desc := MapTokenError(err)
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, http.StatusUnauthorized, code, desc)
				return
			}

			if err := claims.ValidateUse(jwtx.UseAccess); err != nil {
				writeBearerError(w, http.StatusUnauthorized, CodeTokenMalformed, "not an access token")
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
// The second return is "" on success, or the error code to surface.
func BearerToken(r *http.Request) (string, string) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", CodeMissingToken
	}
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", CodeInvalidTokenFormat
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	if raw == "" {
		return "", CodeInvalidTokenFormat
	}
	return raw, ""
}

// MapTokenError converts jwtx sentinel errors into the API error codes.
func MapTokenError(err error) (code, description string) {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return CodeTokenExpired, "token has expired"
	case errors.Is(err, jwtx.ErrIssuer), errors.Is(err, jwtx.ErrAudience):
		return CodeIssuerAudienceMismatch, "token issuer or audience mismatch"
	case errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrUnknownKID),
		errors.Is(err, jwtx.ErrAlgMismatch):
		return CodeSignatureInvalid, "token signature could not be verified"
	case errors.Is(err, jwtx.ErrNotYetValid):
		return CodeTokenMalformed, "token not yet valid"
	default:
		return CodeTokenMalformed, "token could not be parsed"
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// RFC 6750-style bearer error: machine-readable header plus the uniform
// JSON body.
func writeBearerError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, status, code, desc)
}
