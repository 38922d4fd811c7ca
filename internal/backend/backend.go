// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend provides one request contract over three inference
// backends: a hosted chat-completions API, a local inference daemon, and an
// in-process offline stub.
//
// The backend is chosen on every call. Without a credential the runner is
// always offline, whatever mode was requested, so it can be exercised with
// no network access at all.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/internal/logger"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Mode names a backend variant.
type Mode string

const (
	ModeHosted      Mode = "hosted"
	ModeLocalDaemon Mode = "local-daemon"
	ModeOffline     Mode = "offline"
)

// Modes lists every variant.
var Modes = []Mode{ModeHosted, ModeLocalDaemon, ModeOffline}

// ParseMode validates a mode name. The empty string is accepted and means
// "choose from credential presence".
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "", ModeHosted, ModeLocalDaemon, ModeOffline:
		return m, nil
	}
	return "", failure.Configf("unknown backend mode %q (want hosted, local-daemon or offline)", s)
}

// Defaults used when Config leaves a field unset.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 512
	DefaultDaemonURL = "http://localhost:11434"
)

// Config selects and configures the backends.
type Config struct {
	// Mode is the requested variant; empty means hosted when a credential
	// is present.
	Mode Mode

	Model     string
	MaxTokens int

	// Credential is the bearer secret. Its absence forces offline.
	Credential string

	HostedBaseURL string
	DaemonURL     string

	// Timeout bounds each call. Zero leaves the caller's context alone.
	Timeout time.Duration

	Breaker types.BreakerConfig
}

// ConfigFrom converts loaded settings into a runner Config.
func ConfigFrom(c types.BackendConfig) (Config, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Mode:          mode,
		Model:         c.Model,
		MaxTokens:     c.MaxTokens,
		Credential:    c.Credential,
		HostedBaseURL: c.HostedBaseURL,
		DaemonURL:     c.DaemonURL,
		Timeout:       c.Timeout,
		Breaker:       c.Breaker,
	}, nil
}

// Request is a multi-turn completion request. Messages are sent in order;
// System, when set, is prepended as a system message.
type Request struct {
	System    string
	Messages  []types.Turn
	Model     string
	MaxTokens int
}

// Reply is a successful completion.
type Reply struct {
	Text string

	// ModelUsed is the model that actually produced Text. It is
	// StubModel when the offline stub answered.
	ModelUsed string

	// Variant is the backend that answered.
	Variant Mode

	// Fallback is set when the selected backend was unreachable and the
	// offline stub answered instead.
	Fallback      bool
	FallbackCause string
}

// variant is implemented by the three backends.
type variant interface {
	complete(ctx context.Context, req Request) (Reply, error)
}

// Runner dispatches requests to the selected backend.
// It is safe for concurrent use.
type Runner struct {
	mu  sync.Mutex
	cfg Config

	client  *http.Client
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Runner.
type Option func(*Runner)

// WithHTTPClient sets the client used by the hosted and daemon backends.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg}
	for _, o := range opts {
		o(r)
	}
	r.logger = logger.OrNop(r.logger)
	if r.client == nil {
		r.client = &http.Client{}
	}
	if cfg.Breaker.Enabled {
		r.breaker = newBreaker(cfg.Breaker, r.logger)
	}
	return r
}

// Select reports the variant the next call will use.
func (r *Runner) Select() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked()
}

func (r *Runner) selectLocked() Mode {
	if strings.TrimSpace(r.cfg.Credential) == "" {
		return ModeOffline
	}
	if r.cfg.Mode != "" {
		return r.cfg.Mode
	}
	return ModeHosted
}

// SetMode changes the requested variant for subsequent calls.
func (r *Runner) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Mode = m
}

// SetCredential changes the credential for subsequent calls.
func (r *Runner) SetCredential(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Credential = c
}

// Config returns a copy of the current configuration.
func (r *Runner) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Send completes a single user message.
func (r *Runner) Send(ctx context.Context, message, model string, maxTokens int) (Reply, error) {
	return r.Complete(ctx, Request{
		Messages:  []types.Turn{{Role: types.RoleUser, Content: message}},
		Model:     model,
		MaxTokens: maxTokens,
	})
}

// Complete sends req to the selected backend. Failures are
// *failure.TransportError values; nothing is retried here.
func (r *Runner) Complete(ctx context.Context, req Request) (Reply, error) {
	r.mu.Lock()
	cfg := r.cfg
	mode := r.selectLocked()
	r.mu.Unlock()

	if req.Model == "" {
		req.Model = cfg.Model
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	var v variant
	switch mode {
	case ModeHosted:
		v = &hosted{
			credential: cfg.Credential,
			baseURL:    cfg.HostedBaseURL,
			client:     r.client,
			breaker:    r.breaker,
		}
	case ModeLocalDaemon:
		url := cfg.DaemonURL
		if url == "" {
			url = DefaultDaemonURL
		}
		v = &daemon{
			baseURL:    url,
			credential: cfg.Credential,
			client:     r.client,
			logger:     r.logger,
		}
	case ModeOffline:
		v = stub{}
	default:
		return Reply{}, failure.Configf("unknown backend mode %q", mode)
	}

	if cfg.Timeout > 0 && mode != ModeOffline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := v.complete(ctx, req)
	if err != nil {
		r.logger.Warn("backend call failed",
			zap.String("variant", string(mode)),
			zap.String("model", req.Model),
			zap.Bool("recoverable", failure.IsRecoverable(err)),
			zap.Error(err))
		return Reply{}, fmt.Errorf("sending to %s backend: %w", mode, err)
	}
	r.logger.Debug("backend call",
		zap.String("variant", string(reply.Variant)),
		zap.String("model_used", reply.ModelUsed),
		zap.Bool("fallback", reply.Fallback),
		zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// lastUserMessage returns the content of the final user turn.
func lastUserMessage(turns []types.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == types.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
