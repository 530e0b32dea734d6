package modkit

import (
	"context"
	"errors"
	"sync"
)

// Model is a deferred-result container standing in for the business-layer
// response. A command may return a completed model, or an incomplete one
// that the business layer completes later from another goroutine. The
// dispatch chain resumes rendering when the model completes.
type Model struct {
	mu        sync.Mutex
	done      chan struct{}
	value     any
	err       error
	completed bool
	callbacks []func(v any, err error)
}

// NewModel returns an incomplete model.
func NewModel() *Model {
	return &Model{done: make(chan struct{})}
}

// ModelOf returns a model already completed with v.
func ModelOf(v any) *Model {
	m := NewModel()
	m.Complete(v)
	return m
}

// Complete resolves the model with a value. The first call to Complete or
// Fail wins; later calls are no-ops. Registered callbacks fire exactly
// once, in registration order, on the completing goroutine. Reports
// whether this call resolved the model.
func (m *Model) Complete(v any) bool {
	return m.resolve(v, nil)
}

// Fail resolves the model with an error. Same semantics as Complete.
func (m *Model) Fail(err error) bool {
	if err == nil {
		err = errors.New("model failed with nil error")
	}
	return m.resolve(nil, err)
}

func (m *Model) resolve(v any, err error) bool {
	m.mu.Lock()
	if m.completed {
		m.mu.Unlock()
		return false
	}
	m.completed = true
	m.value = v
	m.err = err
	cbs := m.callbacks
	m.callbacks = nil
	close(m.done)
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// OnComplete registers a callback invoked when the model resolves. If the
// model is already complete the callback fires synchronously.
func (m *Model) OnComplete(cb func(v any, err error)) {
	m.mu.Lock()
	if !m.completed {
		m.callbacks = append(m.callbacks, cb)
		m.mu.Unlock()
		return
	}
	v, err := m.value, m.err
	m.mu.Unlock()
	cb(v, err)
}

// Wait blocks until the model resolves or ctx ends. A lapsed deadline is
// reported as ErrModelTimeout.
func (m *Model) Wait(ctx context.Context) (any, error) {
	select {
	case <-m.done:
		return m.value, m.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrModelTimeout
		}
		return nil, ctx.Err()
	}
}

// Value returns the result without blocking. The bool reports whether the
// model has resolved.
func (m *Model) Value() (any, error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.err, m.completed
}

// Done returns a channel closed when the model resolves.
func (m *Model) Done() <-chan struct{} {
	return m.done
}
