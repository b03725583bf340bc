// Package metrics holds the in-process counter registry shared by the
// account, token, and session services. Counters are plain atomics; the
// exporters under metrics/export translate snapshots into external
// formats.
package metrics
