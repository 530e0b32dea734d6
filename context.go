package modkit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modkit-go/modkit/session"
)

// Context carries one request through the dispatch chain. It wraps the
// underlying transport objects and the merged request parameters, and
// gives filters and commands a shared attribute space.
//
// For WebSocket dispatch Writer is nil and Request is the connection's
// upgrade request.
type Context struct {
	// Request is the underlying HTTP request.
	Request *http.Request

	// Writer is the HTTP response writer. Nil for socket dispatch.
	Writer http.ResponseWriter

	ctx    context.Context
	id     string
	module string
	params url.Values
	logger *slog.Logger

	attrsMu sync.Mutex
	attrs   map[string]any

	store      session.Store
	cookieName string
	secure     bool
	sess       *session.Session
	sessErr    error

	result *ModelAndView
}

func newContext(ctx context.Context, module string, r *http.Request, w http.ResponseWriter, params url.Values, logger *slog.Logger) *Context {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Request: r,
		Writer:  w,
		ctx:     ctx,
		id:      id,
		module:  module,
		params:  params,
		logger:  logger.With("request_id", id),
	}
}

// Context returns the deadline-carrying context for this dispatch.
func (c *Context) Context() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// RequestID returns the id assigned to this request.
func (c *Context) RequestID() string {
	return c.id
}

// ModuleName returns the name of the module handling this request.
func (c *Context) ModuleName() string {
	return c.module
}

// Logger returns the request-scoped logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Param returns the first value of a request parameter. Path captures
// shadow query parameters, which shadow form values.
func (c *Context) Param(name string) string {
	return c.params.Get(name)
}

// ParamValues returns all values of a request parameter.
func (c *Context) ParamValues(name string) []string {
	return c.params[name]
}

// Params returns the merged parameter set.
func (c *Context) Params() url.Values {
	return c.params
}

// Set stores an attribute on the request, visible to later filters and
// the command.
func (c *Context) Set(key string, value any) {
	c.attrsMu.Lock()
	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	c.attrs[key] = value
	c.attrsMu.Unlock()
}

// Get returns a request attribute.
func (c *Context) Get(key string) (any, bool) {
	c.attrsMu.Lock()
	defer c.attrsMu.Unlock()
	v, ok := c.attrs[key]
	return v, ok
}

// Cookie returns the named request cookie value.
func (c *Context) Cookie(name string) (string, bool) {
	if c.Request == nil {
		return "", false
	}
	ck, err := c.Request.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// SetCookie adds a response cookie. No-op for socket dispatch.
func (c *Context) SetCookie(cookie *http.Cookie) {
	if c.Writer == nil {
		return
	}
	http.SetCookie(c.Writer, cookie)
}

// Session returns the request's session, loading it from the module's
// store on first access. A request without a session cookie gets a fresh
// session; the cookie is written when the response is rendered.
func (c *Context) Session() (*session.Session, error) {
	if c.sess != nil || c.sessErr != nil {
		return c.sess, c.sessErr
	}
	if c.store == nil {
		c.sessErr = session.ErrNoStore
		return nil, c.sessErr
	}

	if id, ok := c.Cookie(c.cookieName); ok {
		data, err := c.store.Load(c.Context(), id)
		if err == nil {
			c.sess = session.Resume(id, data)
			return c.sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			c.sessErr = err
			return nil, err
		}
	}

	c.sess = session.New(uuid.NewString())
	return c.sess, nil
}

// finishSession persists a dirty session and sets the cookie for a fresh
// one. Called by the request handler after the chain completes.
func (c *Context) finishSession(ttl time.Duration) error {
	if c.sess == nil || c.store == nil {
		return nil
	}
	if c.sess.Fresh() {
		c.SetCookie(&http.Cookie{
			Name:     c.cookieName,
			Value:    c.sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   c.secure,
		})
	}
	if !c.sess.Dirty() {
		return nil
	}
	return c.store.Save(c.Context(), c.sess.ID(), c.sess.Data(), ttl)
}
