// Package middleware exposes the HTTP access-control gates: token
// verification, role checks, and ownership checks, as composable
// net/http middleware.
//
// # Gates
//
//   - [Guard.RequireAuth] — rejects unauthenticated requests with 401.
//   - [Guard.OptionalAuth] — same checks, but every failure falls
//     through unauthenticated instead of rejecting.
//   - [RequireRole] — 403 unless the authenticated role is allowed.
//   - [RequireOwnershipOrAdmin] — 403 unless the authenticated user owns
//     the path-parameter resource or holds an admin role.
//
// RequireAuth extracts the token from the Authorization Bearer header,
// falling back to the access_token cookie, verifies it, loads the user,
// and checks account status before injecting an [Identity] into the
// request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into token and user-store
// calls. It makes no authentication decisions itself beyond ordering the
// checks and mapping failures to status codes.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the token service).
//   - Mutate user records or sessions (read-only on every request).
//   - Let OptionalAuth block a request for any reason, including
//     infrastructure faults.
package middleware
