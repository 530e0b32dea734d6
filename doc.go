// Package modkit is a thin model-view-controller layer over net/http.
//
// Application authors register isolated modules (route groups) on a
// Manager and handle requests through a command pattern: each endpoint
// names a CommandFactory, a fresh command is constructed per request,
// data-bound from request parameters, and executed. Commands return
// plain values, redirects, or deferred Models that complete later.
//
// Request dispatch flows Manager → Module → filter chain → command.
// Modules are initialized lazily on the first matching request: route
// patterns are compiled, view templates parsed, and static mappings
// built exactly once.
//
// The companion packages wire the rest of the system:
//   - socket: WebSocket dispatch over the same modules (gorilla/websocket)
//   - session: cookie-backed session stores (in-memory and Postgres)
//   - deploy: module deployment from a directory of YAML descriptors
package modkit
