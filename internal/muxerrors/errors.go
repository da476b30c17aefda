// Package muxerrors defines the error kinds shared across the host
// connection, discovery, bridge, and API layers, so callers can branch on
// errors.Is/errors.As instead of matching strings.
package muxerrors

import "errors"

var (
	ErrHostUnknown     = errors.New("host unknown")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrNetworkError    = errors.New("network error")
	ErrJumpHostFailed  = errors.New("jump host connection failed")
	ErrTimeout         = errors.New("operation timed out")
	ErrSessionNotFound = errors.New("session not found")
	ErrMaxAttempts     = errors.New("max reconnect attempts exceeded")
)

// Code maps an error kind to the WebSocket/HTTP error code string the
// external interfaces document.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrHostUnknown):
		return "HOST_UNKNOWN"
	case errors.Is(err, ErrAuthFailed):
		return "AUTH_FAILED"
	case errors.Is(err, ErrNetworkError):
		return "NETWORK_ERROR"
	case errors.Is(err, ErrJumpHostFailed):
		return "JUMP_HOST_FAILED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrMaxAttempts):
		return "MAX_ATTEMPTS_EXCEEDED"
	default:
		return ""
	}
}

// HTTPStatus maps an error kind to the status code the Control Surface
// should respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrHostUnknown), errors.Is(err, ErrSessionNotFound):
		return 404
	case errors.Is(err, ErrAuthFailed):
		return 401
	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrJumpHostFailed), errors.Is(err, ErrTimeout), errors.Is(err, ErrMaxAttempts):
		return 500
	default:
		return 400
	}
}
