// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CountingTransport wraps an http.RoundTripper, counts outbound requests,
// and logs each one at debug level. The zero value uses
// http.DefaultTransport and a no-op logger.
type CountingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger

	n atomic.Int64
}

// RoundTrip implements http.RoundTripper.
func (t *CountingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.n.Add(1)
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	if t.Logger != nil {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			t.Logger.Debug("outbound request failed", append(fields, zap.Error(err))...)
		} else {
			t.Logger.Debug("outbound request", append(fields, zap.Int("status", resp.StatusCode))...)
		}
	}
	return resp, err
}

// Count returns the number of requests sent so far.
func (t *CountingTransport) Count() int64 {
	return t.n.Load()
}

// Client returns an http.Client using t with the given timeout.
func (t *CountingTransport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}
