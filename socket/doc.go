// Package socket dispatches WebSocket messages through modkit modules.
//
// A Gateway upgrades HTTP requests on a mounted path and keeps a
// registry of live connections. Inbound text frames carry a JSON
// envelope naming a dispatch path; the gateway routes each envelope
// through the owning module's filter chain and command, and replies on
// the same connection. Deferred models reply when the business layer
// completes without blocking the connection's read loop.
package socket
