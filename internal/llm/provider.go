package llm

import "context"

// Provider is a text-generation backend. The optimizer treats it as an
// optional collaborator: a nil Provider means suggestions fall back to a
// canned response.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
