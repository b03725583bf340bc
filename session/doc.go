// Package session keeps one bookkeeping row per outstanding refresh
// token: who owns it, what device created it, when it was last active,
// and when it expires.
//
// # Design
//
// Rows never contain the refresh token or its jti. They store the
// fingerprint — the one-way hash of the jti — so a leaked row cannot be
// replayed. Rows live in Redis under `sess:<id>` with a TTL equal to the
// refresh token's expiry, alongside a per-user id index (`sess:user:`)
// and a fingerprint index (`sess:fp:`). Expired rows vanish with their
// TTL; [Service.SweepExpired] reconciles the indexes on a schedule, not
// in the request path.
//
// Session state and token revocation are reconciled by the caller:
// revoking a session blocks its fingerprint in the token blocklist with a
// TTL derived from the row's own stored expiry, never from a fresh token
// lifetime.
//
// # What this package must NOT do
//
//   - Parse or create signed tokens (it sees only jtis and fingerprints).
//   - Touch user records.
//   - Write outside the `sess:` key namespace.
package session
