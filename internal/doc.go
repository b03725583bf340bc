// Package internal holds shared helpers that must not become public API:
// random token material generation. Subpackages hold the lockout limiter,
// the one-time token stores, and the metrics registry.
package internal
