// Package openai implements the chat-completion provider on the OpenAI
// Chat Completions API, translating between the assistant's message shapes
// and the wire format.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vango-go/voicenav/pkg/core"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// DefaultModel is used when neither the provider nor the request names one.
const DefaultModel = "gpt-4o-mini"

// Provider implements core.ChatProvider against the OpenAI API.
type Provider struct {
	client openai.Client
	model  string

	baseURL    string
	clientOpts []option.RequestOption
}

// New creates an OpenAI provider. The API key is required; everything else
// has defaults.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, core.NewCredentialError("an OpenAI API key is required")
	}
	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	clientOpts = append(clientOpts, p.clientOpts...)
	p.client = openai.NewClient(clientOpts...)
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// CreateCompletion sends one chat-completion request and normalizes the
// response. Authentication failures come back as credential errors; other
// failures are transport errors.
func (p *Provider) CreateCompletion(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, mapError(err)
	}
	return parseCompletion(completion)
}
