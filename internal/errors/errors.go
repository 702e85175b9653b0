// Package errors provides custom error types for complaintdesk.
//
// This package defines domain-specific errors that help callers decide how
// to react to a failure. Each error type carries context about what went
// wrong, and the Is helpers walk wrapped chains so callers can test a kind
// without caring how deep it was wrapped.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrRoleNotPermitted is returned when an operation is attempted from a
// session whose role does not allow it (e.g. a student listing users).
var ErrRoleNotPermitted = stderrors.New("operation not permitted for role")

// ValidationError indicates that input was rejected locally before any
// request was sent.
//
// This error is returned when:
//   - A complaint is submitted with an empty title, subject or description
//   - A status update carries an unknown status or an empty response
//   - A new password is empty or does not match its confirmation
//
// Recovery strategy: Show the message to the user and let them correct input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error for a field
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// UnauthorizedError indicates that the server rejected the session.
//
// This error is returned when:
//   - The session cookie is missing or has expired (401)
//   - The session is valid but the role may not call the endpoint (403)
//
// Recovery strategy: Re-login. The server's answer is authoritative over the
// role cookie the client holds.
type UnauthorizedError struct {
	StatusCode int
	Message    string
}

func (e *UnauthorizedError) Error() string {
	if e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("forbidden: %s", e.Message)
	}
	return fmt.Sprintf("unauthorized: %s", e.Message)
}

// Forbidden reports whether the server answered 403 rather than 401.
func (e *UnauthorizedError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// NewUnauthorizedError creates a new unauthorized error from a response status
func NewUnauthorizedError(status int, msg string) *UnauthorizedError {
	return &UnauthorizedError{StatusCode: status, Message: msg}
}

// LoginFailedError indicates that a login attempt failed.
//
// This error is returned when:
//   - The login request cannot be sent
//   - Credentials are rejected
//   - The server answers without setting a session cookie
//
// Recovery strategy: Retry with delay, then reset the HTTP session
type LoginFailedError struct {
	Message string
	Err     error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("login failed: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// NewLoginFailedError creates a new login failed error with context
func NewLoginFailedError(msg string, err error) *LoginFailedError {
	return &LoginFailedError{Message: msg, Err: err}
}

// RequestError wraps a failed call to the complaint service.
//
// This error is returned when:
//   - The request could not be sent or timed out (StatusCode is 0)
//   - The server answered with a non-2xx status
//   - The response body could not be decoded
//
// 4xx and 5xx responses are not distinguished beyond the status code; callers
// treat every RequestError as a failed mutation or refresh.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.Path)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("request error: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("request error: %s", msg)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new request error with context
func NewRequestError(method, path string, status int, msg string, err error) *RequestError {
	return &RequestError{Method: method, Path: path, StatusCode: status, Message: msg, Err: err}
}

// IsValidation checks if the error is (or wraps) a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// IsUnauthorized checks if the error is (or wraps) a 401 or 403 rejection
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return stderrors.As(err, &target)
}

// IsForbidden checks if the error is (or wraps) a 403 rejection
func IsForbidden(err error) bool {
	var target *UnauthorizedError
	return stderrors.As(err, &target) && target.Forbidden()
}

// IsLoginFailed checks if the error is (or wraps) a login failure error
func IsLoginFailed(err error) bool {
	var target *LoginFailedError
	return stderrors.As(err, &target)
}

// IsRequest checks if the error is (or wraps) a request error
func IsRequest(err error) bool {
	var target *RequestError
	return stderrors.As(err, &target)
}

// IsRoleNotPermitted checks if the error is ErrRoleNotPermitted
func IsRoleNotPermitted(err error) bool {
	return stderrors.Is(err, ErrRoleNotPermitted)
}
