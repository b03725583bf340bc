// Package stores provides Redis-backed, short-lived record stores for the
// single-use email tokens: account verification, pending-email changes,
// and password reset.
//
// # Design
//
// Every record is one key with a TTL equal to its semantic lifetime and is
// consumed with GETDEL, so single use holds under concurrent attempts
// without transactions. Verification tokens are keyed by
// `verify:<userId>:<token>`; reset tokens are keyed by `reset:<token>`
// with the owning user id as the value, a direct reverse index.
//
// # What this package must NOT do
//
//   - Generate token material — callers supply opaque values.
//   - Import authcore or any sibling internal package.
//   - Make account-state decisions.
package stores
