package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var levelVar = new(slog.LevelVar)

// output lets SetOutput redirect L while other goroutines keep logging.
var output = &swapWriter{w: os.Stderr}

// L is the process-wide structured logger. It writes JSON to stderr so that
// stdout stays free for the conversation itself.
var L = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: levelVar}))

type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput redirects L to w, keeping the current level.
func SetOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.w = w
}
