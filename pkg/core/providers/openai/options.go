package openai

import (
	"github.com/openai/openai-go/option"
)

// Option configures the OpenAI provider.
type Option func(*Provider)

// WithModel sets the default chat model for requests that do not name one.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithClientOptions appends raw client options, e.g. a custom HTTP client
// or retry policy.
func WithClientOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}
