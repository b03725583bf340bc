// Package authcore implements the authentication and session-security
// core of the nearbyhub platform: signed access/refresh tokens with a
// Redis-backed revocation blocklist, per-device session bookkeeping,
// failed-login lockout, and the account lifecycle state machine
// (pending, active, suspended, deleted with a 30-day grace period).
//
// The package is designed for request-parallel server workloads:
// [Service] methods are safe to call from multiple goroutines after
// [NewService]. There are no in-process locks; all coordination is
// delegated to the ephemeral store's atomic primitives.
//
// # Architecture boundaries
//
// authcore is the account-flow surface. Token issuance and verification
// live in the token sub-package, session rows in session, the HTTP gates
// in middleware. Redis key handling, lockout counters, and one-time
// token records live under internal/ and are never exported.
//
// Refresh-token issuance and session creation deliberately stay with the
// caller: [Service.Login] returns only the access token, because the
// route layer also needs the refresh token's jti to build the session
// row.
//
// # What this package must NOT do
//
//   - Render or deliver email (it only enqueues [Mail] values).
//   - Parse HTTP requests or write responses.
//   - Block the primary operation on mail, audit, or metrics: those are
//     drained by background workers and dropped when their buffers fill.
package authcore
