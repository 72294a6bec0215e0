// Package history persists the conversation history.
// The whole history is serialized as one JSON array of {role, content}
// records and written to a single fixed key, overwriting what was there.
// Loading never fails: missing or malformed data degrades to an empty history.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/comigor/chatsession/internal/chat"
	"github.com/comigor/chatsession/internal/logger"
)

// DefaultKey is the storage slot holding the serialized history.
const DefaultKey = "chatMessages"

// Sentinel errors for backend and codec operations.
var (
	ErrNotFound   = errors.New("key not found")
	ErrMalformed  = errors.New("malformed history")
	ErrLoadFailed = errors.New("load failed")
	ErrSaveFailed = errors.New("save failed")
)

// Store loads and saves the full conversation history.
type Store interface {
	Load(ctx context.Context) []chat.Message
	Save(ctx context.Context, msgs []chat.Message) error
}

// Backend is a durable key-value slot. Get returns ErrNotFound when nothing
// has been stored under key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Encode serializes msgs as a JSON array of {role, content} records.
func Encode(msgs []chat.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return json.Marshal(msgs)
}

// Decode parses data produced by Encode. Every decoded message gets a fresh
// identity. Unknown roles are rejected.
func Decode(data []byte) ([]chat.Message, error) {
	var records []chat.Message
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]chat.Message, 0, len(records))
	for i, r := range records {
		if !r.Role.Valid() {
			return nil, fmt.Errorf("%w: record %d has role %q", ErrMalformed, i, r.Role)
		}
		out = append(out, chat.NewMessage(r.Role, r.Content))
	}
	return out, nil
}

// KVStore is a Store that keeps the encoded history under one key of a Backend.
type KVStore struct {
	backend Backend
	key     string
	timeout time.Duration
}

// New creates a KVStore. A zero timeout means calls use the caller's context as is.
func New(backend Backend, key string, timeout time.Duration) *KVStore {
	if key == "" {
		key = DefaultKey
	}
	return &KVStore{backend: backend, key: key, timeout: timeout}
}

func (s *KVStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load returns the stored history, or an empty one if nothing usable is stored.
func (s *KVStore) Load(ctx context.Context) []chat.Message {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.L.Warn("history load failed; starting empty", "key", s.key, "error", err)
		}
		return []chat.Message{}
	}

	msgs, err := Decode(data)
	if err != nil {
		logger.L.Warn("stored history is malformed; starting empty", "key", s.key, "error", err)
		return []chat.Message{}
	}
	logger.L.Debug("history loaded", "key", s.key, "messages", len(msgs))
	return msgs
}

// Save overwrites the stored history with msgs.
func (s *KVStore) Save(ctx context.Context, msgs []chat.Message) error {
	data, err := Encode(msgs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.backend.Put(ctx, s.key, data)
}

// Close releases the underlying backend.
func (s *KVStore) Close() error {
	return s.backend.Close()
}
