package jwtx

import (
	"fmt"
)

// KeyManager wires the signing key, the trusted public key set, and the
// verifier together for one service instance.
//
// The private key is used only for issuing; verification goes through the
// KeySet, which holds the signer's own public half plus any retained
// public keys from previous rotations. Rotating means deploying a new
// private key while keeping the old public key in the extras list until
// outstanding tokens expire.
type KeyManager struct {
	Signer   Signer
	Verifier Verifier
	KeySet   *KeySet
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// PrivateKeyPEM is the RSA signing key (PKCS1 or PKCS8 PEM).
	PrivateKeyPEM []byte

	// ExtraPublicKeyPEMs are PKIX public keys still trusted for
	// verification (rotation grace period). May be empty.
	ExtraPublicKeyPEMs [][]byte

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// Audience is the list of audience values (aud) that will be
	// validated. Empty slice means no audience validation.
	Audience []string
}

// NewKeyManager builds a KeyManager from PEM key material.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}
	if len(opts.PrivateKeyPEM) == 0 {
		return nil, fmt.Errorf("jwtx: PrivateKeyPEM is required")
	}

	signer, err := NewSignerRS256(opts.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load signing key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	keyset := NewKeySet()
	if err := keyset.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("jwtx: register signer public key: %w", err)
	}

	for i, pemKey := range opts.ExtraPublicKeyPEMs {
		if err := keyset.AddPublicKeyPEM(pemKey); err != nil {
			return nil, fmt.Errorf("jwtx: load extra public key %d: %w", i, err)
		}
	}

	return &KeyManager{
		Signer:   signer,
		Verifier: NewCommonRS256(keyset, opts.Issuer, opts.Audience),
		KeySet:   keyset,
	}, nil
}
