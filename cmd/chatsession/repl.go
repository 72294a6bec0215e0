package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/session"
)

const quitCommand = "/quit"

// repl is a line-based view over a session controller.
type repl struct {
	ctrl      *session.Controller
	in        io.Reader
	out       io.Writer
	interrupt func() (<-chan os.Signal, func())
}

func (r *repl) run() error {
	scanner := bufio.NewScanner(r.in)
	for {
		if draft := r.ctrl.State().Draft; draft != "" {
			fmt.Fprintf(r.out, "(draft) %s\n", draft)
		}
		fmt.Fprint(r.out, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == quitCommand {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			line = r.ctrl.State().Draft
		}

		r.ctrl.SetDraft(line)

		// listen before submitting so an early Ctrl-C cancels the turn
		sigs, stop := r.interrupt()
		if !r.ctrl.Submit(line) {
			stop()
			continue
		}
		cancelled := r.waitTurn(sigs)
		stop()
		if cancelled {
			fmt.Fprintln(r.out, "cancelled")
			continue
		}

		st := r.ctrl.State()
		if n := len(st.History); st.Err == nil && n > 0 && st.History[n-1].Role == chat.RoleAssistant {
			printMessage(r.out, st.History[n-1])
		}
	}
}

// waitTurn blocks until the pending turn resolves. A signal on sigs cancels
// it; the return value tells whether the cancel took effect.
func (r *repl) waitTurn(sigs <-chan os.Signal) bool {
	done := make(chan struct{})
	go func() {
		r.ctrl.Wait()
		close(done)
	}()

	select {
	case <-done:
		return false
	case <-sigs:
		cancelled := r.ctrl.Cancel()
		<-done
		return cancelled
	}
}

func printHistory(w io.Writer, msgs []chat.Message) {
	for _, m := range msgs {
		printMessage(w, m)
	}
}

func printMessage(w io.Writer, m chat.Message) {
	who := "assistant"
	if m.Role == chat.RoleUser {
		who = "you"
	}
	fmt.Fprintf(w, "%s: %s\n", who, m.Content)
}
