// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Frames dispatched per subscription and kind
//   - Parse failures and book consistency violations
//   - Connection state and reconnect attempts
//   - Replica freshness (last applied exchange timestamp)
package metrics
