package internal

import (
	"crypto/rand"
	"encoding/hex"
)

const oneTimeTokenBytes = 32

// NewOneTimeToken returns a 256-bit random value hex-encoded. One-time
// tokens are opaque: they carry no structure and their validity is
// enforced entirely by store-side TTL and single-use consumption.
func NewOneTimeToken() (string, error) {
	var raw [oneTimeTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
