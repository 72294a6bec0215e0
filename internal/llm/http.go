package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/config"
	"github.com/comigor/chatsession/internal/logger"
)

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Metadata map[string]any `json:"metadata"`
}

type chatResponse struct {
	Message *chat.Message `json:"message"`
}

// HTTPClient talks to a completion service exposing POST {base_url}/chat.
type HTTPClient struct {
	endpoint string
	model    string
	metadata map[string]any
	client   *http.Client
}

// NewHTTPClient creates a new HTTPClient. No timeout is set on the underlying
// http.Client; requests end when the service answers or the context is cancelled.
func NewHTTPClient(cfg config.CompletionConfig) *HTTPClient {
	metadata := cfg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat",
		model:    cfg.Model,
		metadata: metadata,
		client:   &http.Client{},
	}
}

// Send posts the full history and decodes the single reply message.
func (c *HTTPClient) Send(ctx context.Context, history []chat.Message) (chat.Message, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: chat.Clone(history),
		Metadata: c.metadata,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return chat.Message{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.L.Debug("sending chat request", "endpoint", c.endpoint, "messages", len(history))

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return chat.Message{}, ErrCancelled
		}
		return chat.Message{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return chat.Message{}, &TransportError{StatusCode: resp.StatusCode}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return chat.Message{}, ErrCancelled
		}
		return chat.Message{}, &ProtocolError{Err: err}
	}
	if out.Message == nil {
		return chat.Message{}, &ProtocolError{Err: errors.New("response has no message")}
	}
	if out.Message.Role != chat.RoleAssistant {
		return chat.Message{}, &ProtocolError{Err: fmt.Errorf("unexpected reply role %q", out.Message.Role)}
	}

	return chat.NewMessage(chat.RoleAssistant, out.Message.Content), nil
}
