// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps conversation history on top of the backend runner.
// A Session is owned by one caller and is not safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/backend"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Completer sends a multi-turn request. *backend.Runner implements it.
type Completer interface {
	Complete(ctx context.Context, req backend.Request) (backend.Reply, error)
}

// Session is an ordered, append-only conversation.
type Session struct {
	id        string
	completer Completer
	model     string
	maxTokens int
	history   []types.Turn
	last      backend.Reply
}

// New starts an empty session using model for every turn until SetModel.
func New(c Completer, model string, maxTokens int) *Session {
	return &Session{
		id:        uuid.NewString(),
		completer: c,
		model:     model,
		maxTokens: maxTokens,
	}
}

// ID identifies the session in logs and exports.
func (s *Session) ID() string { return s.id }

// Model returns the model used for the next turn.
func (s *Session) Model() string { return s.model }

// SetModel changes the model for subsequent turns.
func (s *Session) SetModel(model string) { s.model = model }

// Clear empties the history. The model is kept.
func (s *Session) Clear() { s.history = nil }

// History returns a copy of the turns so far.
func (s *Session) History() []types.Turn {
	out := make([]types.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// LastReply returns the reply to the most recent successful turn.
func (s *Session) LastReply() backend.Reply { return s.last }

// Send appends a user turn, sends the whole history, and appends the
// assistant turn labelled with the model that actually answered. When the
// backend fails the user turn stays in the history and no assistant turn
// is added.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.history = append(s.history, types.Turn{Role: types.RoleUser, Content: text, ModelUsed: s.model})

	reply, err := s.completer.Complete(ctx, backend.Request{
		Messages:  s.History(),
		Model:     s.model,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return "", err
	}

	s.history = append(s.history, types.Turn{Role: types.RoleAssistant, Content: reply.Text, ModelUsed: reply.ModelUsed})
	s.last = reply
	return reply.Text, nil
}

type export struct {
	SessionID string       `yaml:"session_id"`
	Model     string       `yaml:"model"`
	Turns     []types.Turn `yaml:"turns"`
}

// Export writes the session as YAML.
func (s *Session) Export(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(export{SessionID: s.id, Model: s.model, Turns: s.History()}); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return enc.Close()
}
