package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"

	"github.com/vango-go/voicenav/pkg/core"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// parseCompletion normalizes the OpenAI response into the internal shape.
func parseCompletion(completion *openai.ChatCompletion) (*types.CompletionResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, core.NewTransportError("chat completion response has no choices", nil)
	}
	choice := completion.Choices[0]

	out := &types.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	if out.FinishReason == "" {
		out.FinishReason = types.FinishStop
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

// mapError classifies request failures. Rejected keys are credential
// errors so callers never retry them; everything else unexpected is a
// transport error. Context cancellation passes through untouched.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return core.NewCredentialError("the chat service rejected the API key")
		}
		return core.NewTransportError(fmt.Sprintf("chat completion failed with status %d", apierr.StatusCode), err)
	}
	return core.NewTransportError("chat completion request failed", err)
}
