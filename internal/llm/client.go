package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/config"
)

// Client sends the conversation so far and returns the assistant's reply.
// Cancelling ctx aborts the request and yields ErrCancelled.
type Client interface {
	Send(ctx context.Context, history []chat.Message) (chat.Message, error)
}

// New creates the client selected by cfg.Provider.
func New(cfg config.CompletionConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderHTTP:
		return NewHTTPClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}
