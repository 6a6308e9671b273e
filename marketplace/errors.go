package marketplace

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates a timeout while issuing a request. Retryable.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure. Retryable.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the marketplace throttled the request. The
// caller must back off before retrying.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx upstream response. Retryable.
type ErrServer struct {
	Err error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server: %w", e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// ErrAuth indicates rejected credentials (HTTP 401/403). Terminal:
// retrying cannot help until configuration changes.
type ErrAuth struct {
	Err error
}

func (e ErrAuth) Error() string {
	return fmt.Errorf("auth: %w", e.Err).Error()
}

func (e ErrAuth) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404). Terminal.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrBadResponse indicates an unparseable or contract-violating
// response body. Terminal.
type ErrBadResponse struct {
	Err error
}

func (e ErrBadResponse) Error() string {
	return fmt.Errorf("bad_response: %w", e.Err).Error()
}

func (e ErrBadResponse) Unwrap() error {
	return e.Err
}

// Retryable reports whether the classified error is transient. Unknown
// errors are treated as terminal so a misclassification never loops.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return true
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return true
	}
	var server ErrServer
	if errors.As(err, &server) {
		return true
	}
	return false
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server"
	}
	var auth ErrAuth
	if errors.As(err, &auth) {
		return "auth"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var bad ErrBadResponse
	if errors.As(err, &bad) {
		return "bad_response"
	}
	return "other"
}
