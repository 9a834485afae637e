// Package relay implements the marker relay: it turns an inbound request
// body into exactly one sample on the relay's outlet.
//
// The relay manager:
//   - Validates the body (a JSON object with a "marker" field)
//   - Coerces the marker to a string
//   - Pushes it onto the outlet, whose transport assigns the timestamp
//   - Reports the outcome as a Result instead of an error value
package relay
