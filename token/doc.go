// Package token issues, verifies, rotates, and revokes the platform's
// signed credentials: short-lived access tokens, medium-lived refresh
// tokens, and opaque one-time email tokens.
//
// # Token kinds
//
// Access and refresh tokens are JWTs signed with HS256 or Ed25519. Every
// token embeds a fresh jti (unique id) and a kind discriminator, and
// [Service.Verify] matches the kind exhaustively: a refresh token is never
// accepted where an access token is expected, and vice versa. One-time
// tokens are 256-bit random hex values with no structure at all; their
// validity lives entirely in the ephemeral store.
//
// # Revocation
//
// Revocation is a TTL-backed blocklist in Redis under two namespaces:
// `revoked:jti:<id>` for raw unique ids and `revoked:fp:<fingerprint>` for
// one-way fingerprints (sha256 of the jti), used by the session service
// which never stores raw ids. Verification checks both. Callers must pass
// a TTL at least as long as the token's remaining validity — a shorter TTL
// reopens the token after the marker expires.
//
// # Failure semantics
//
// Malformed, expired, wrong-kind, and revoked tokens all collapse to
// [ErrInvalid]; nothing about the failure mode leaks to the caller. Store
// unreachability is NOT masked: it surfaces as [ErrStoreUnavailable] so
// callers can tell "credentials invalid" from "infrastructure degraded".
//
// # What this package must NOT do
//
//   - Touch user records or sessions.
//   - Log token material.
//   - Write any Redis key outside the revocation namespaces.
package token
