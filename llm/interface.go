package llm

import "context"

// CompletionClient defines the interface for the completion backend.
type CompletionClient interface {
	// Complete sends the composed messages and returns the assistant text.
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Ensure Client implements CompletionClient.
var _ CompletionClient = (*Client)(nil)
