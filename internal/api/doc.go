// Package api implements the optional HTTP API and WebSocket stream for changeling-watch.
//
// This package provides:
//   - REST endpoints for health, the latest daemon status, and transition history
//   - A command endpoint that publishes ENTER/EXIT/DUMP to the daemon's command topic
//   - A WebSocket hub that relays every message the watcher receives
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The Server is itself a watch.Handler: the subscriber loop hands it each
// inbound message after printing it. The server parses status lines, keeps the
// most recent one, and broadcasts the message to WebSocket clients. Commands
// flow the other way, from HTTP to the broker.
//
// # Graceful Degradation
//
// The server operates without MQTT or history. Reads and WebSocket
// connections keep working; only the endpoints that need the missing piece
// answer 503.
package api
