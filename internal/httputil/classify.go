// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the backend variants:
// failure classification and an instrumented transport.
package httputil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/pdiddy/evidence-engine/internal/failure"
)

// maxErrorBody bounds how much of a failed response body is kept for the
// error message.
const maxErrorBody = 512

// RecoverableStatus reports whether an HTTP status is worth retrying later:
// 408, 429 and any 5xx.
func RecoverableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// IsConnRefused reports whether err came from a refused TCP connection.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Classify wraps a failed call as a TransportError. A call with no HTTP
// status (timeout, refused or reset connection) is recoverable; otherwise
// the status decides.
func Classify(variant string, status int, err error) *failure.TransportError {
	if status == 0 {
		return failure.Recoverable(variant, 0, err)
	}
	if RecoverableStatus(status) {
		return failure.Recoverable(variant, status, err)
	}
	return failure.Fatal(variant, status, err)
}

// ErrorBody reads a bounded, trimmed prefix of a failed response body.
func ErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(body))
}
