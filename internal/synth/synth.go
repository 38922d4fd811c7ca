// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth asks a model for a short, non-actionable synthesis
// paragraph about an aggregated corpus. The report falls back to a
// deterministic paragraph whenever no real model answers.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/backend"
	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/internal/logger"
	"github.com/pdiddy/evidence-engine/internal/report"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// SystemPrompt frames every synthesis request.
const SystemPrompt = "You are asked to produce a concise, non-actionable research synthesis summary. " +
	"Label the output as a model-draft and avoid giving prescriptive or clinical advice."

// promptTopics bounds the topics listed in the prompt.
const promptTopics = 10

// DefaultMaxRetries applies when Synthesizer.MaxRetries is zero.
const DefaultMaxRetries = 2

// NoRetries as Synthesizer.MaxRetries makes a single attempt.
const NoRetries = -1

var promptTmpl = template.Must(template.New("prompt").Parse(`Context:
- Evidence items processed: {{.ItemCount}}
- Top interventions (auto-extracted):
{{- range .Topics}}
- {{.Label}}: {{.Count}} source(s)
{{- else}}
- (none identified)
{{- end}}

Produce a short executive-style paragraph (3-6 sentences) summarizing the landscape.
`))

// Prompt renders the user message for a corpus of itemCount items.
func Prompt(itemCount int, tally types.TopicTally) (string, error) {
	topics := tally.Top()
	if len(topics) > promptTopics {
		topics = topics[:promptTopics]
	}
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		ItemCount int
		Topics    []types.TopicEntry
	}{itemCount, topics})
	if err != nil {
		return "", fmt.Errorf("rendering synthesis prompt: %w", err)
	}
	return buf.String(), nil
}

// Completer is the slice of the backend runner synthesis needs.
type Completer interface {
	Complete(ctx context.Context, req backend.Request) (backend.Reply, error)
	Select() backend.Mode
}

// Synthesizer produces report drafts.
type Synthesizer struct {
	Backend Completer

	// Cache is consulted before the backend; nil disables caching.
	Cache cache.Cache

	Model     string
	MaxTokens int

	// MaxRetries bounds retries of recoverable failures. Zero means
	// DefaultMaxRetries; NoRetries disables retrying.
	MaxRetries int

	Logger *zap.Logger
}

// Draft returns the model's synthesis, or nil when only the offline stub
// answered. Recoverable transport failures are retried with exponential
// backoff; fatal ones are returned immediately.
func (s *Synthesizer) Draft(ctx context.Context, itemCount int, tally types.TopicTally) (*report.Draft, error) {
	log := logger.OrNop(s.Logger)
	prompt, err := Prompt(itemCount, tally)
	if err != nil {
		return nil, err
	}

	model := s.Model
	if model == "" {
		model = backend.DefaultModel
	}
	key := cache.Key(SystemPrompt, prompt, model)
	c := s.Cache
	if c == nil || s.Backend.Select() == backend.ModeOffline {
		c = cache.NewNoOp()
	}

	if e, err := c.Get(ctx, key); err != nil {
		log.Warn("synthesis cache read failed", zap.Error(err))
	} else if e != nil {
		log.Debug("synthesis cache hit", zap.String("model", e.Model))
		return &report.Draft{Text: e.Text, Model: e.Model}, nil
	}

	retries := s.MaxRetries
	switch {
	case retries < 0:
		retries = 0
	case retries == 0:
		retries = DefaultMaxRetries
	}
	reply, err := callWithRetry(ctx, s.Backend, backend.Request{
		System:    SystemPrompt,
		Messages:  []types.Turn{{Role: types.RoleUser, Content: prompt}},
		Model:     model,
		MaxTokens: s.MaxTokens,
	}, retries)
	if err != nil {
		return nil, err
	}
	if backend.IsStub(reply) || strings.TrimSpace(reply.Text) == "" {
		log.Info("no model available for synthesis, using deterministic paragraph",
			zap.String("variant", string(reply.Variant)))
		return nil, nil
	}

	d := &report.Draft{Text: strings.TrimSpace(reply.Text), Model: reply.ModelUsed}
	if err := c.Set(ctx, key, cache.Entry{Text: d.Text, Model: d.Model}); err != nil {
		log.Warn("synthesis cache write failed", zap.Error(err))
	}
	return d, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry retries recoverable failures with exponential backoff.
func callWithRetry(ctx context.Context, c Completer, req backend.Request, maxRetries int) (backend.Reply, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return backend.Reply{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reply, err := c.Complete(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !failure.IsRecoverable(err) {
			return backend.Reply{}, err
		}
		lastErr = err
	}
	return backend.Reply{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
