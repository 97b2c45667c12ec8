// Package errors provides custom error types for complaintsync.
//
// This package defines domain-specific errors that help the batch drivers
// decide how far a failure is allowed to travel. Per-record failures never
// leave the reconciliation engine; the types here describe failures that end
// a whole batch run (but never the process).
package errors

import (
	stderrors "errors"
	"fmt"
)

// FetchError wraps failures talking to the page store.
//
// This error is returned when:
//   - The query request cannot be sent or times out
//   - The API answers with a non-2xx status after all retries
//   - The response body cannot be decoded
//
// Recovery strategy: give up on this sync run; the next scheduled run
// re-queries the same trailing window.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("fetch error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error with context
func NewFetchError(msg string, err error) *FetchError {
	return &FetchError{Message: msg, Err: err}
}

// ConnectError indicates that a batch could not acquire its database session.
//
// This error is returned when:
//   - The pool cannot hand out a connection before the connect timeout
//   - The database is unreachable or rejects credentials
//
// Recovery strategy: fatal to the current batch invocation only. The
// scheduler's next tick retries naturally.
type ConnectError struct {
	Message string
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("connect error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// NewConnectError creates a new connect error with context
func NewConnectError(msg string, err error) *ConnectError {
	return &ConnectError{Message: msg, Err: err}
}

// ConfigError indicates invalid or missing configuration.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Key, e.Message)
}

// NewConfigError creates a new config error for the given key
func NewConfigError(key, msg string) *ConfigError {
	return &ConfigError{Key: key, Message: msg}
}

// IsFetchError checks if the error chain contains a FetchError
func IsFetchError(err error) bool {
	var target *FetchError
	return stderrors.As(err, &target)
}

// IsConnectError checks if the error chain contains a ConnectError
func IsConnectError(err error) bool {
	var target *ConnectError
	return stderrors.As(err, &target)
}

// IsConfigError checks if the error chain contains a ConfigError
func IsConfigError(err error) bool {
	var target *ConfigError
	return stderrors.As(err, &target)
}
