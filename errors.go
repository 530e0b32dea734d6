package modkit

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrModuleExists  = errors.New("module already registered")
	ErrUnknownModule = errors.New("no module mounted for path")
	ErrNoRoute       = errors.New("no matching route")
	ErrViewNotFound  = errors.New("view not found")
	ErrModelTimeout  = errors.New("model completion timeout")
	ErrNilCommand    = errors.New("command factory returned nil")
)

// StatusError carries an HTTP status code through the dispatch chain.
// Commands and filters return it to control the response status.
type StatusError struct {
	Code    int
	Message string
}

// NewStatusError builds a StatusError with the given code and message.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// BindError reports a request parameter that could not be converted
// onto a command field.
type BindError struct {
	Field string
	Value string
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
