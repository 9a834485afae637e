// Package http provides the HTTP API of the marker relay.
//
// The HTTP server exposes endpoints for:
//   - Marker submission (POST /markers)
//   - Health checks
//   - Prometheus metrics
//   - A websocket tail of the relay stream, when configured
package http
