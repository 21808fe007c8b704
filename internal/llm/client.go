package llm

import (
	"context"
)

// Client is the text-completion collaborator. maxTokens bounds the response
// length at the provider (0 uses the provider default); callers needing JSON
// parse the returned text with common.ParseJSON and keep a deterministic
// fallback, since any call may fail.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
