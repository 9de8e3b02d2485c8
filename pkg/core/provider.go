package core

import (
	"context"

	"github.com/vango-go/voicenav/pkg/core/types"
)

// ChatProvider is the chat-completion service the agent loop talks to.
// The system is built against one fixed chat/completions protocol; tests
// substitute scripted implementations.
type ChatProvider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// CreateCompletion sends one non-streaming chat-completion request.
	CreateCompletion(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
}

// CredentialSupplier hands out the token used to authenticate the realtime
// transport. Absence of a token is a fatal start-up error for the caller.
type CredentialSupplier interface {
	// Token returns a credential or an error. Must not block indefinitely.
	Token(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to the CredentialSupplier interface.
type CredentialFunc func(ctx context.Context) (string, error)

// Token implements CredentialSupplier.
func (f CredentialFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticCredential returns a supplier that always yields the given token,
// or a credential error when the token is empty.
func StaticCredential(token string) CredentialSupplier {
	return CredentialFunc(func(ctx context.Context) (string, error) {
		if token == "" {
			return "", NewCredentialError("no API key configured")
		}
		return token, nil
	})
}
