// Package websocket provides a live tail of the relay stream via WebSocket.
//
// Clients connect to /markers/ws and receive every sample published after
// they connected, one JSON text frame per sample.
package websocket
