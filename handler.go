package modkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// dispatch runs one HTTP request through a module: static mappings, then
// route match, filter chain, command, and finally the deferred-model
// resumption protocol before rendering.
func (mgr *Manager) dispatch(w http.ResponseWriter, r *http.Request, mod *Module, rel string) {
	start := time.Now()

	if h, ok := mod.matchStatic(rel); ok {
		h.ServeHTTP(w, r)
		return
	}

	ep, pathParams, err := mod.match(r.Method, rel)
	if err != nil {
		mgr.writeError(w, mgr.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mgr.dispatchTimeout(ep))
	defer cancel()

	c := newContext(ctx, mod.name, r, w, requestParams(r, pathParams), mgr.logger.With("module", mod.name))
	c.store = mgr.sessionStore(mod)
	c.cookieName = mgr.cfg.SessionCookie
	c.secure = mgr.cfg.SecureCookies

	chain := newChain(mod.filterSet, (&commandController{ep: ep}).handle)
	if err := chain.Next(c); err != nil {
		c.logger.Error("dispatch failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		mgr.saveSession(c)
		mgr.writeError(w, c.logger, err)
		return
	}

	mv := c.result
	if mv == nil {
		// A filter ended the chain and wrote the response itself. Its
		// session writes still persist.
		mgr.saveSession(c)
		return
	}

	if mv.IsRedirect() {
		mgr.saveSession(c)
		code := mv.RedirectCode
		if code == 0 {
			code = http.StatusFound
		}
		http.Redirect(w, r, mv.Redirect, code)
		return
	}

	// Deferred-model resumption: park until the business layer completes,
	// bounded by the dispatch deadline.
	value, err := mv.Model.Wait(ctx)
	if err != nil {
		mgr.saveSession(c)
		mgr.writeError(w, c.logger, err)
		return
	}

	mgr.saveSession(c)

	if err := mgr.render(w, mod, mv.View, value); err != nil {
		mgr.writeError(w, c.logger, err)
		return
	}

	c.logger.Debug("request served",
		"method", r.Method,
		"path", r.URL.Path,
		"view", mv.View,
		"duration", time.Since(start),
	)
}

// requestParams merges path captures, query, and form values. Earlier
// sources shadow later ones: path over query over form.
func requestParams(r *http.Request, pathParams url.Values) url.Values {
	params := url.Values{}

	if err := r.ParseForm(); err == nil {
		for k, vs := range r.PostForm {
			params[k] = vs
		}
	}
	for k, vs := range r.URL.Query() {
		params[k] = vs
	}
	for k, vs := range pathParams {
		params[k] = vs
	}
	return params
}

// render resolves the response body. An endpoint without a view renders
// JSON; a named view renders through the module's templates.
func (mgr *Manager) render(w http.ResponseWriter, mod *Module, view string, value any) error {
	if view == "" {
		if value == nil {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		body, err := json.Marshal(value)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return nil
	}

	// Render into a buffer first so a template failure can still produce
	// a clean error response.
	var buf bytes.Buffer
	if err := mod.views.render(&buf, view, value); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
	return nil
}

// saveSession persists the request's session before the response goes
// out. Every dispatch exit passes through here so filter and command
// session writes survive short circuits and errors.
func (mgr *Manager) saveSession(c *Context) {
	if err := c.finishSession(mgr.cfg.SessionTTL); err != nil {
		c.logger.Warn("session save failed", "error", err)
	}
}

// writeError maps a dispatch error to an HTTP response.
func (mgr *Manager) writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var statusErr *StatusError
	var bindErr *BindError
	switch {
	case errors.As(err, &statusErr):
		code = statusErr.Code
		msg = statusErr.Message
		if msg == "" {
			msg = http.StatusText(code)
		}
	case errors.As(err, &bindErr):
		code = http.StatusBadRequest
		msg = bindErr.Error()
	case errors.Is(err, ErrNoRoute):
		code = http.StatusNotFound
		msg = "not found"
	case errors.Is(err, ErrModelTimeout):
		code = http.StatusGatewayTimeout
		msg = "request timed out"
	}

	if code >= http.StatusInternalServerError && logger != nil {
		logger.Error("request error", "status", code, "error", err)
	}
	http.Error(w, msg, code)
}
