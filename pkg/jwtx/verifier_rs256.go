package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed using RS256 against a KeySet of
// trusted public keys. Holding more than one key is what makes rotation
// work: tokens signed by a retiring key stay verifiable during the grace
// period while new tokens carry the new kid.
type RS256Verifier struct {
	keys   *KeySet
	issuer string
	aud    []string
}

// NewVerifierRS256 creates a verifier using a KeySet of RSA public keys.
func NewVerifierRS256(keys *KeySet, issuer string, aud []string) *RS256Verifier {
	return &RS256Verifier{keys: keys, issuer: issuer, aud: aud}
}

// Verify validates the JWT string and returns its parsed Claims. Failures
// come back as the package sentinel errors so callers can map them to
// distinct response codes.
func (v *RS256Verifier) Verify(tokenStr string) (*Claims, error) {
	claims, err := v.parseSigned(tokenStr, false)
	if err != nil {
		return nil, err
	}

	if err := claims.ValidateExpiry(time.Now().UTC()); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyIgnoreExpiry validates signature, issuer and audience but
// tolerates a passed exp claim. Revocation paths use it: a genuine token
// that just ran out must still identify its subject, while a forged one
// must fail exactly as it does under Verify.
func (v *RS256Verifier) VerifyIgnoreExpiry(tokenStr string) (*Claims, error) {
	return v.parseSigned(tokenStr, true)
}

func (v *RS256Verifier) parseSigned(tokenStr string, ignoreExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if ignoreExpiry {
		// Signature checking is unaffected; this only skips the
		// library's registered-claims validation, which we redo below
		// minus the expiry check.
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	parser := jwt.NewParser(opts...)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}

		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}

		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("jwtx: invalid RSA key type")
		}
		return rsaPub, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	// Now check all the claim requirements
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return nil, err
	}

	return claims, nil
}

// mapParseError narrows golang-jwt's joined parse errors down to our
// sentinels so the boundary layer never has to know the library's error
// taxonomy.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
