// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// hosted calls an OpenAI-compatible chat-completions API.
type hosted struct {
	credential string
	baseURL    string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func (h *hosted) complete(ctx context.Context, req Request) (Reply, error) {
	if h.breaker == nil {
		return h.call(ctx, req)
	}
	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.call(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Reply{}, failure.Recoverable(string(ModeHosted), 0, err)
	}
	if err != nil {
		return Reply{}, err
	}
	return out.(Reply), nil
}

func (h *hosted) call(ctx context.Context, req Request) (Reply, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(h.credential),
		option.WithHTTPClient(h.client),
		option.WithMaxRetries(0),
	}
	if h.baseURL != "" {
		opts = append(opts, option.WithBaseURL(h.baseURL))
	}
	cli := openai.NewClient(opts...)

	resp, err := cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            buildMessages(req),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Reply{}, httputil.Classify(string(ModeHosted), apiErr.StatusCode, err)
		}
		return Reply{}, httputil.Classify(string(ModeHosted), 0, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Reply{}, failure.Fatal(string(ModeHosted), 0, fmt.Errorf("no choices returned"))
	}

	used := resp.Model
	if used == "" {
		used = req.Model
	}
	return Reply{
		Text:      resp.Choices[0].Message.Content,
		ModelUsed: used,
		Variant:   ModeHosted,
	}, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}
	for _, t := range req.Messages {
		switch t.Role {
		case types.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(t.Content),
					},
				},
			})
		default:
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(t.Content),
					},
				},
			})
		}
	}
	return msgs
}

// newBreaker trips after a run of recoverable failures. Fatal failures such
// as a rejected credential do not count against the service.
func newBreaker(cfg types.BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(ModeHosted),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !failure.IsRecoverable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}
