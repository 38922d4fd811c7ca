// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package failure defines the error taxonomy shared by the pipeline stages
// and the backend runner. Callers test categories with errors.Is and read
// transport details with errors.As.
package failure

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a record or file that cannot be interpreted.
	ErrMalformedInput = errors.New("malformed input")

	// ErrRecoverableTransport marks a backend failure worth retrying later:
	// timeouts, refused connections, rate limits, server errors, open breaker.
	ErrRecoverableTransport = errors.New("recoverable transport failure")

	// ErrFatalTransport marks a backend failure that will not succeed on
	// retry, such as a rejected credential or a bad request.
	ErrFatalTransport = errors.New("fatal transport failure")

	// ErrConfiguration marks missing or invalid settings: unknown backend
	// mode, missing template file, unwritable output path.
	ErrConfiguration = errors.New("configuration error")
)

// TransportError describes a failed backend call.
type TransportError struct {
	// Variant is the backend that failed (hosted, local-daemon).
	Variant string

	// StatusCode is the HTTP status, or zero when no response was received.
	StatusCode int

	Recoverable bool

	Err error
}

func (e *TransportError) Error() string {
	kind := "fatal"
	if e.Recoverable {
		kind = "recoverable"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend: %s failure (status %d): %v", e.Variant, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s backend: %s failure: %v", e.Variant, kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches the recoverable or fatal sentinel according to Recoverable.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrRecoverableTransport:
		return e.Recoverable
	case ErrFatalTransport:
		return !e.Recoverable
	}
	return false
}

// Recoverable wraps err as a recoverable transport failure.
func Recoverable(variant string, status int, err error) *TransportError {
	return &TransportError{Variant: variant, StatusCode: status, Recoverable: true, Err: err}
}

// Fatal wraps err as a fatal transport failure.
func Fatal(variant string, status int, err error) *TransportError {
	return &TransportError{Variant: variant, StatusCode: status, Err: err}
}

// Configf returns an ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// IsRecoverable reports whether err is a recoverable transport failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverableTransport)
}
