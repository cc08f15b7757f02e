package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSignerRS256 creates an RS256 signer from PEM bytes. The key id is
// derived deterministically from the public half, so verifiers that load
// only the public key compute the same kid.
func NewSignerRS256(pemKey []byte) (Signer, error) {
	return newRS256Signer(pemKey)
}
