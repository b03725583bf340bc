// Package prometheus adapts the authcore counter registry to a
// prometheus.Collector.
//
// [NewExporter] wraps any snapshot source (typically Service.Metrics)
// and renders every counter as an authcore_*_total metric on scrape.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry — callers own
//     registration and mounting.
//   - Mutate counter state.
package prometheus
