// Package rate implements the Redis-backed failed-login lockout counter.
//
// # Design
//
// One counter per user id under the `lockout:<userId>` key, incremented
// with atomic INCR and bounded by a TTL equal to the lockout window.
// Lockout is derived state: the account is locked while the counter is at
// or above the threshold, and unlocks when the counter expires or is
// cleared by a successful login.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Decide which error message the caller surfaces.
//   - Read or write any key outside the lockout namespace.
package rate
