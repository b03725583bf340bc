package token

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the signed token kinds. One-time tokens are opaque
// and never carry claims, so they have no Kind.
type Kind string

const (
	// KindAccess is the short-lived per-request credential.
	KindAccess Kind = "access"
	// KindRefresh is the longer-lived credential exchanged for new
	// access tokens.
	KindRefresh Kind = "refresh"
)

// Claims is the signed payload shared by access and refresh tokens. The
// Kind field is the discriminator; role and email are populated on access
// tokens only, Extended on refresh tokens only. Subject carries the user
// id and ID the jti.
type Claims struct {
	Kind     Kind   `json:"knd"`
	Role     string `json:"rol,omitempty"`
	Email    string `json:"eml,omitempty"`
	Extended bool   `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Fingerprint returns the one-way hash of a token's jti, hex encoded.
// Session rows store fingerprints instead of raw ids, and the fingerprint
// itself is a valid revocation key in the `revoked:fp:` namespace.
func Fingerprint(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
