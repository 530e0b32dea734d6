// Package session provides cookie-backed session storage for modkit
// modules.
//
// A Store persists session data keyed by id; the in-memory store suits
// single-process deployments and tests, the Postgres store shares
// sessions across processes. Session ids travel in an HttpOnly cookie
// managed by the dispatch chain.
package session
