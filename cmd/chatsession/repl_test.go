package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/config"
	"github.com/comigor/chatsession/internal/history"
	"github.com/comigor/chatsession/internal/llm"
	"github.com/comigor/chatsession/internal/session"
)

func newController(t *testing.T, handler http.HandlerFunc, opts ...session.Option) *session.Controller {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := llm.NewHTTPClient(config.CompletionConfig{BaseURL: srv.URL + "/api", Model: "fake_llm_model"})
	store := history.New(history.NewMemoryBackend(), history.DefaultKey, 0)
	return session.New(context.Background(), client, store, opts...)
}

type clientFunc func(ctx context.Context, history []chat.Message) (chat.Message, error)

func (f clientFunc) Send(ctx context.Context, history []chat.Message) (chat.Message, error) {
	return f(ctx, history)
}

func newControllerWith(client llm.Client) *session.Controller {
	store := history.New(history.NewMemoryBackend(), history.DefaultKey, 0)
	return session.New(context.Background(), client, store)
}

func noInterrupt() (<-chan os.Signal, func()) {
	return make(chan os.Signal), func() {}
}

func lastUserContent(r *http.Request) string {
	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		return ""
	}
	return body.Messages[len(body.Messages)-1].Content
}

func TestRepl_SendsAndPrintsReply(t *testing.T) {
	ctrl := newController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"hi"}}`))
	})

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("hello\n/quit\n"), out: &out, interrupt: noInterrupt}
	require.NoError(t, r.run())

	require.Contains(t, out.String(), "assistant: hi")
	require.Len(t, ctrl.State().History, 2)
}

func TestRepl_InterruptCancelsTurn(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	ctrl := newController(t, func(w http.ResponseWriter, r *http.Request) {
		// the server only sees the disconnect once the body is consumed
		io.Copy(io.Discard, r.Body)
		close(received)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	sigs := make(chan os.Signal, 1)
	interrupt := func() (<-chan os.Signal, func()) {
		go func() {
			<-received
			sigs <- os.Interrupt
		}()
		return sigs, func() {}
	}

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("hello\n/quit\n"), out: &out, interrupt: interrupt}
	require.NoError(t, r.run())

	require.Contains(t, out.String(), "cancelled")
	require.Contains(t, out.String(), "(draft) hello")
	require.Empty(t, ctrl.State().History)
}

func TestRepl_EmptyLineResendsDraft(t *testing.T) {
	got := make(chan string, 1)
	ctrl := newController(t, func(w http.ResponseWriter, r *http.Request) {
		got <- lastUserContent(r)
		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}, session.WithDraft("again"))

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("\n/quit\n"), out: &out, interrupt: noInterrupt}
	require.NoError(t, r.run())

	require.Equal(t, "again", <-got)
	require.Contains(t, out.String(), "assistant: ok")
}

func TestRepl_FailureKeepsMessage(t *testing.T) {
	ctrl := newController(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("hello\n"), out: &out, interrupt: noInterrupt}
	require.NoError(t, r.run(), "end of input ends the loop cleanly")

	st := ctrl.State()
	require.Len(t, st.History, 1)
	require.Error(t, st.Err)
	require.NotContains(t, out.String(), "assistant:")
}

func TestRepl_InterruptBeforeSubmitReturns(t *testing.T) {
	ctrl := newControllerWith(clientFunc(func(ctx context.Context, _ []chat.Message) (chat.Message, error) {
		<-ctx.Done()
		return chat.Message{}, llm.ErrCancelled
	}))

	var loadingAtListen []bool
	interrupt := func() (<-chan os.Signal, func()) {
		loadingAtListen = append(loadingAtListen, ctrl.State().Loading)
		sigs := make(chan os.Signal, 1)
		sigs <- os.Interrupt
		return sigs, func() {}
	}

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("hello\n/quit\n"), out: &out, interrupt: interrupt}
	require.NoError(t, r.run())

	require.Equal(t, []bool{false}, loadingAtListen, "interrupts are captured before the turn starts")
	require.Contains(t, out.String(), "cancelled")
	require.Contains(t, out.String(), "(draft) hello")
	require.Empty(t, ctrl.State().History)
}

func TestRepl_SilentCancelPrintsNothing(t *testing.T) {
	ctrl := newControllerWith(clientFunc(func(context.Context, []chat.Message) (chat.Message, error) {
		return chat.Message{}, llm.ErrCancelled
	}))

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, in: strings.NewReader("hello\n/quit\n"), out: &out, interrupt: noInterrupt}
	require.NoError(t, r.run())

	st := ctrl.State()
	require.Len(t, st.History, 1)
	require.NoError(t, st.Err)
	require.NotContains(t, out.String(), "you: hello")
	require.NotContains(t, out.String(), "assistant:")
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	store := history.New(history.NewFileBackend(dir), history.DefaultKey, 0)
	require.NoError(t, store.Save(context.Background(), []chat.Message{
		chat.NewMessage(chat.RoleUser, "hello"),
		chat.NewMessage(chat.RoleAssistant, "hi"),
	}))

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  backend: file\n  path: "+dir+"\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--config", cfgPath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "you: hello\nassistant: hi\n", out.String())
}
