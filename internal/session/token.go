package session

import (
	"context"

	"github.com/google/uuid"
)

// Token is the cancellation handle of one in-flight turn. The controller
// compares tokens by pointer: a continuation whose token is no longer the
// current one lost the race and must not touch the session.
type Token struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

func newToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{
		id:     uuid.Must(uuid.NewV7()).String(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID identifies the token in logs.
func (t *Token) ID() string { return t.id }

// Context is cancelled once Cancel is called.
func (t *Token) Context() context.Context { return t.ctx }

// Cancel signals cancellation. Calling it more than once is harmless.
func (t *Token) Cancel() { t.cancel() }

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }
