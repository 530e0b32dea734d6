package modkit

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// MessageRequest describes one message dispatch arriving over a
// non-HTTP transport, such as a WebSocket envelope.
type MessageRequest struct {
	// Path routes the message the same way an HTTP path would.
	Path string

	// Params carries the message payload flattened to parameters.
	Params url.Values

	// HTTPRequest is the transport's originating HTTP request (the
	// WebSocket upgrade request). Used for cookie and header access.
	HTTPRequest *http.Request
}

// DispatchMessage routes a message through the same module chain as an
// HTTP request. complete is invoked exactly once with the command's
// result: immediately for synchronous results, later for deferred
// models, and with ErrModelTimeout if the dispatch deadline lapses
// first. The caller's goroutine is never parked on model completion.
//
// A redirect result completes with the target URL as the value.
func (mgr *Manager) DispatchMessage(ctx context.Context, req MessageRequest, complete func(v any, err error)) {
	mod, rel, ok := mgr.resolveModule(req.Path)
	if !ok {
		complete(nil, ErrUnknownModule)
		return
	}

	if err := mod.initialize(mgr.logger); err != nil {
		mgr.logger.Error("module init failed", "module", mod.name, "error", err)
		complete(nil, err)
		return
	}

	ep, pathParams, err := mod.match("", rel)
	if err != nil {
		complete(nil, err)
		return
	}

	params := url.Values{}
	for k, vs := range req.Params {
		params[k] = vs
	}
	for k, vs := range pathParams {
		params[k] = vs
	}

	c := newContext(ctx, mod.name, req.HTTPRequest, nil, params, mgr.logger.With("module", mod.name))
	c.store = mgr.sessionStore(mod)
	c.cookieName = mgr.cfg.SessionCookie
	c.secure = mgr.cfg.SecureCookies

	chain := newChain(mod.filterSet, (&commandController{ep: ep}).handle)
	if err := chain.Next(c); err != nil {
		mgr.saveSession(c)
		complete(nil, err)
		return
	}

	mv := c.result
	if mv == nil {
		// Chain short-circuited by a filter.
		mgr.saveSession(c)
		complete(nil, nil)
		return
	}
	if mv.IsRedirect() {
		mgr.saveSession(c)
		complete(RedirectValue{URL: mv.Redirect}, nil)
		return
	}

	var once sync.Once
	finish := func(v any, err error) {
		once.Do(func() {
			mgr.saveSession(c)
			complete(v, err)
		})
	}

	var timer *time.Timer
	if timeout := mgr.dispatchTimeout(ep); timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			finish(nil, ErrModelTimeout)
		})
	}

	mv.Model.OnComplete(func(v any, err error) {
		if timer != nil {
			timer.Stop()
		}
		finish(v, err)
	})
}

// RedirectValue is the completion value for a redirect result dispatched
// over a message transport.
type RedirectValue struct {
	URL string `json:"redirect"`
}
