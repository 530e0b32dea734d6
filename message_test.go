package modkit

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/modkit-go/modkit/session"
)

func messageManager(t *testing.T) *Manager {
	t.Helper()
	mgr := testManager()

	mod := NewModule("chat", "/chat")
	mod.Handle("", "/echo", func() Command { return &greetCmd{} })
	mod.Handle("", "/defer", Cmd(func(c *Context) (any, error) {
		model := NewModel()
		go func() {
			time.Sleep(10 * time.Millisecond)
			model.Complete("late")
		}()
		return model, nil
	}))
	mod.Handle("", "/stuck", Cmd(func(c *Context) (any, error) {
		return NewModel(), nil
	}), WithTimeout(20*time.Millisecond))
	mod.Handle("", "/go-away", Cmd(func(c *Context) (any, error) {
		return NewRedirect("/login"), nil
	}))

	if err := mgr.Register(mod); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return mgr
}

func dispatchWait(t *testing.T, mgr *Manager, path string, params url.Values) (any, error) {
	t.Helper()

	type completion struct {
		v   any
		err error
	}
	done := make(chan completion, 1)

	req := MessageRequest{
		Path:        path,
		Params:      params,
		HTTPRequest: httptest.NewRequest("GET", "/ws", nil),
	}
	mgr.DispatchMessage(context.Background(), req, func(v any, err error) {
		done <- completion{v, err}
	})

	select {
	case c := <-done:
		return c.v, c.err
	case <-time.After(time.Second):
		t.Fatal("dispatch never completed")
		return nil, nil
	}
}

func TestDispatchMessageSync(t *testing.T) {
	mgr := messageManager(t)

	v, err := dispatchWait(t, mgr, "/chat/echo", url.Values{"name": {"carol"}})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	body, ok := v.(map[string]string)
	if !ok {
		t.Fatalf("result type = %T, want map[string]string", v)
	}
	if body["greeting"] != "hello carol" {
		t.Errorf("greeting = %q, want %q", body["greeting"], "hello carol")
	}
}

func TestDispatchMessageDeferred(t *testing.T) {
	mgr := messageManager(t)

	v, err := dispatchWait(t, mgr, "/chat/defer", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if v != "late" {
		t.Errorf("result = %v, want %q", v, "late")
	}
}

func TestDispatchMessageTimeout(t *testing.T) {
	mgr := messageManager(t)

	_, err := dispatchWait(t, mgr, "/chat/stuck", nil)
	if !errors.Is(err, ErrModelTimeout) {
		t.Errorf("err = %v, want ErrModelTimeout", err)
	}
}

func TestDispatchMessageRedirect(t *testing.T) {
	mgr := messageManager(t)

	v, err := dispatchWait(t, mgr, "/chat/go-away", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	rd, ok := v.(RedirectValue)
	if !ok {
		t.Fatalf("result type = %T, want RedirectValue", v)
	}
	if rd.URL != "/login" {
		t.Errorf("URL = %q, want /login", rd.URL)
	}
}

func TestDispatchMessageUnknownModule(t *testing.T) {
	mgr := messageManager(t)

	_, err := dispatchWait(t, mgr, "/nowhere/at-all", nil)
	if !errors.Is(err, ErrUnknownModule) && !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v, want ErrUnknownModule or ErrNoRoute", err)
	}
}

func TestDispatchMessageSavesSession(t *testing.T) {
	mgr := testManager()
	store := session.NewMemory()
	mgr.UseSessions(store)

	mod := NewModule("chat", "/chat")
	mod.Handle("", "/join", Cmd(func(c *Context) (any, error) {
		sess, err := c.Session()
		if err != nil {
			return nil, err
		}
		sess.Set("room", "lobby")
		return map[string]string{"status": "joined"}, nil
	}))
	mod.Handle("", "/join-later", Cmd(func(c *Context) (any, error) {
		sess, err := c.Session()
		if err != nil {
			return nil, err
		}
		sess.Set("room", "lounge")

		model := NewModel()
		go func() {
			time.Sleep(10 * time.Millisecond)
			model.Complete(map[string]string{"status": "joined"})
		}()
		return model, nil
	}))
	if err := mgr.Register(mod); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := dispatchWait(t, mgr, "/chat/join", nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1 saved session", store.Len())
	}

	// Deferred completion saves too, once the model resolves.
	if _, err := dispatchWait(t, mgr, "/chat/join-later", nil); err != nil {
		t.Fatalf("deferred dispatch failed: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("store.Len() = %d, want 2 saved sessions", store.Len())
	}
}

func TestDispatchMessageCompletesOnce(t *testing.T) {
	mgr := testManager()
	mod := NewModule("race", "/race")
	model := NewModel()
	mod.Handle("", "/slow", Cmd(func(c *Context) (any, error) {
		return model, nil
	}), WithTimeout(20*time.Millisecond))
	if err := mgr.Register(mod); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	calls := make(chan struct{}, 4)
	req := MessageRequest{
		Path:        "/race/slow",
		HTTPRequest: httptest.NewRequest("GET", "/ws", nil),
	}
	mgr.DispatchMessage(context.Background(), req, func(any, error) {
		calls <- struct{}{}
	})

	// Complete after the timeout already fired.
	time.Sleep(50 * time.Millisecond)
	model.Complete("too late")
	time.Sleep(20 * time.Millisecond)

	if got := len(calls); got != 1 {
		t.Errorf("completion fired %d times, want exactly 1", got)
	}
}
