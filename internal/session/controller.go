// Package session implements the conversation controller: it owns the
// message history, sends each turn to the completion service, supports
// cancelling the in-flight turn with rollback and persists every change.
//
// A submitted user message is appended optimistically. Exactly one of two
// things then resolves the turn: the reply handler (append the assistant
// message, or record the failure) or Cancel (remove the user message by
// identity and restore it as the draft). Both run under the controller mutex
// and the first one to clear the pending turn wins.
package session

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/history"
	"github.com/comigor/chatsession/internal/llm"
	"github.com/comigor/chatsession/internal/logger"
)

// State is a read-only snapshot for the view.
type State struct {
	History []chat.Message
	Draft   string
	Loading bool
	// Pending is the user message awaiting a reply, nil when idle.
	Pending *chat.Message
	// Err is the last reportable failure; the next accepted Submit clears it.
	Err error
}

// pendingTurn pairs the optimistic message with its cancellation token.
// Both are set and cleared together.
type pendingTurn struct {
	msg   chat.Message
	token *Token
}

// Controller is safe for concurrent use.
type Controller struct {
	client llm.Client
	store  history.Store

	onError func(error)

	mu      sync.Mutex
	fsm     *stateless.StateMachine
	history []chat.Message
	draft   string
	pending *pendingTurn
	lastErr error

	inflight sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorHandler registers fn to be called, outside the controller lock,
// with every reportable failure (transport or protocol). Cancellations are
// never reported.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithDraft sets the initial draft text.
func WithDraft(text string) Option {
	return func(c *Controller) { c.draft = text }
}

// New creates a controller whose history is loaded from store.
func New(ctx context.Context, client llm.Client, store history.Store, opts ...Option) *Controller {
	c := &Controller{
		client:  client,
		store:   store,
		fsm:     newMachine(),
		history: store.Load(ctx),
	}
	if c.history == nil {
		c.history = []chat.Message{}
	}
	for _, opt := range opts {
		opt(c)
	}
	logger.L.Info("session started", "messages", len(c.history))
	return c
}

// Submit sends text as a new user turn. It returns false without touching
// the session when the trimmed text is empty or a turn is already pending.
// The reply is handled in the background; Submit never waits for it.
func (c *Controller) Submit(text string) bool {
	content := strings.TrimSpace(text)
	if content == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ok, _ := c.fsm.CanFire(TriggerSubmit); !ok {
		logger.L.Warn("submit refused: a reply is still pending")
		return false
	}

	msg := chat.NewMessage(chat.RoleUser, content)
	token := newToken()

	c.history = append(c.history, msg)
	c.pending = &pendingTurn{msg: msg, token: token}
	c.draft = ""
	c.lastErr = nil
	c.fire(TriggerSubmit)
	c.persist()

	logger.L.Debug("turn submitted", "message", msg.ID, "token", token.ID())

	snapshot := chat.Clone(c.history)
	c.inflight.Add(1)
	go c.await(token, snapshot)

	return true
}

// await runs the completion call for one turn and applies its outcome if the
// turn is still current.
func (c *Controller) await(token *Token, snapshot []chat.Message) {
	defer c.inflight.Done()

	reply, err := c.client.Send(token.Context(), snapshot)

	c.mu.Lock()
	if c.pending == nil || c.pending.token != token {
		c.mu.Unlock()
		logger.L.Debug("discarding outcome of a cancelled turn", "token", token.ID(), "error", err)
		return
	}
	c.pending = nil
	token.Cancel()

	reportable := false
	switch {
	case err == nil:
		c.history = append(c.history, reply)
		c.fire(TriggerReplyReceived)
		c.persist()
	case !llm.IsReportable(err):
		c.fire(TriggerCancel)
	default:
		reportable = true
		c.lastErr = err
		c.fire(TriggerRequestFailed)
		logger.L.Error("completion request failed", "token", token.ID(), "error", err)
	}
	onError := c.onError
	c.mu.Unlock()

	if reportable && onError != nil {
		onError(err)
	}
}

// Cancel aborts the pending turn: the request is cancelled, the user message
// is removed from history and its text becomes the draft again. It returns
// false when nothing is pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending
	if p == nil {
		return false
	}

	p.token.Cancel()
	if i := chat.IndexByID(c.history, p.msg.ID); i >= 0 {
		c.history = slices.Delete(c.history, i, i+1)
	}
	c.draft = p.msg.Content
	c.pending = nil
	c.fire(TriggerCancel)
	c.persist()

	logger.L.Debug("turn cancelled", "message", p.msg.ID, "token", p.token.ID())
	return true
}

// SetDraft replaces the unsent input text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		History: chat.Clone(c.history),
		Draft:   c.draft,
		Loading: c.fsm.MustState() == StateAwaitingReply,
		Err:     c.lastErr,
	}
	if c.pending != nil {
		msg := c.pending.msg
		s.Pending = &msg
	}
	return s
}

// Wait blocks until every started turn has finished its background work.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// fire must be called with c.mu held.
func (c *Controller) fire(trigger FSMTrigger) {
	if err := c.fsm.Fire(trigger); err != nil {
		logger.L.Warn("FSM fire error", "trigger", trigger, "error", err)
	}
}

// persist writes the whole history; failures are logged and otherwise
// ignored. It must be called with c.mu held so writes land in mutation order.
func (c *Controller) persist() {
	if err := c.store.Save(context.Background(), chat.Clone(c.history)); err != nil {
		logger.L.Warn("history save failed", "messages", len(c.history), "error", err)
	}
}
