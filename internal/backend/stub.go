// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"fmt"
	"strings"
)

// StubModel is reported as ModelUsed whenever the offline stub answers.
const StubModel = "offline-stub"

// StubPrefix starts every offline stub reply.
const StubPrefix = "[local-stub]"

// stub answers locally with an acknowledgment of the last user message.
type stub struct{}

func (stub) complete(_ context.Context, req Request) (Reply, error) {
	return Reply{
		Text:      StubReply(lastUserMessage(req.Messages)),
		ModelUsed: StubModel,
		Variant:   ModeOffline,
	}, nil
}

// StubReply is the deterministic offline reply to message.
func StubReply(message string) string {
	return fmt.Sprintf("%s Received: %q. Configure a credential to use a real model.", StubPrefix, message)
}

// IsStub reports whether reply came from the offline stub.
func IsStub(reply Reply) bool {
	return reply.ModelUsed == StubModel || strings.HasPrefix(reply.Text, StubPrefix)
}
