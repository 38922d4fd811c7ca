// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation history.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`

	// ModelUsed is the model that produced an assistant turn. For user
	// turns it records the model the session was configured with.
	ModelUsed string `json:"model_used" yaml:"model_used"`
}
