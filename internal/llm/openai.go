package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/config"
	"github.com/comigor/chatsession/internal/logger"
)

// ChatCompleter is the subset of openai.Client used here; it is easy to mock in tests.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient sends turns to an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	api   ChatCompleter
	model string
}

// NewOpenAIClient creates a client for cfg.BaseURL authenticated with cfg.APIKey.
func NewOpenAIClient(cfg config.CompletionConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewOpenAIClientWith(openai.NewClientWithConfig(oc), cfg.Model)
}

// NewOpenAIClientWith wraps an existing ChatCompleter.
func NewOpenAIClientWith(api ChatCompleter, model string) *OpenAIClient {
	return &OpenAIClient{api: api, model: model}
}

// Send issues one chat completion and returns the first choice.
func (c *OpenAIClient) Send(ctx context.Context, history []chat.Message) (chat.Message, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return chat.Message{}, classifyOpenAIError(ctx, err)
	}
	logger.L.Debug("LLM response received", "id", resp.ID, "choices", len(resp.Choices))

	if len(resp.Choices) == 0 {
		return chat.Message{}, &ProtocolError{Err: errors.New("response has no choices")}
	}
	reply := resp.Choices[0].Message
	if reply.Role != "" && reply.Role != openai.ChatMessageRoleAssistant {
		return chat.Message{}, &ProtocolError{Err: fmt.Errorf("unexpected reply role %q", reply.Role)}
	}
	return chat.NewMessage(chat.RoleAssistant, reply.Content), nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
