// Package api is a client for the public Kraken REST endpoints used before
// streaming starts: system status and the asset pair catalogue.
//
// Endpoints:
//   - GET /0/public/SystemStatus
//   - GET /0/public/AssetPairs
//
// Every response is wrapped in {"error": [...], "result": ...}. A non-empty
// error list is returned as *APIError even when the HTTP status is 200.
package api
