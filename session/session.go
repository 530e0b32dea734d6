package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("session not found")
	ErrNoStore  = errors.New("no session store configured")
)

// Store persists session data keyed by session id.
type Store interface {
	// Load returns the data saved under id, or ErrNotFound.
	Load(ctx context.Context, id string) (map[string]any, error)

	// Save persists data under id for ttl.
	Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// Session is the per-request view of one session. It tracks mutations so
// the dispatch chain only writes back sessions that changed.
type Session struct {
	id    string
	fresh bool

	mu    sync.Mutex
	data  map[string]any
	dirty bool
}

// New returns a fresh, empty session. Fresh sessions get their cookie set
// when the response renders.
func New(id string) *Session {
	return &Session{
		id:    id,
		fresh: true,
		data:  make(map[string]any),
	}
}

// Resume wraps data loaded from a store.
func Resume(id string, data map[string]any) *Session {
	if data == nil {
		data = make(map[string]any)
	}
	return &Session{id: id, data: data}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Fresh reports whether this session was created for the current request.
func (s *Session) Fresh() bool {
	return s.fresh
}

// Get returns a session value.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores a session value and marks the session dirty.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.dirty = true
	s.mu.Unlock()
}

// Delete removes a session value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
	s.mu.Unlock()
}

// Clear removes all values.
func (s *Session) Clear() {
	s.mu.Lock()
	if len(s.data) > 0 {
		s.data = make(map[string]any)
		s.dirty = true
	}
	s.mu.Unlock()
}

// Dirty reports whether the session changed since it was loaded. Fresh
// sessions are dirty once any value is set.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Data returns a snapshot of the session values.
func (s *Session) Data() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
