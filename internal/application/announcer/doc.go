// Package announcer keeps an outlet discoverable on its transport.
//
// The announcer periodically refreshes the outlet's descriptor so that
// discovery entries expire when the process dies, and tracks whether the
// last refresh succeeded. The HTTP and gRPC health endpoints read that state.
package announcer
