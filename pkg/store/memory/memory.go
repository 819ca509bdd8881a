// Package memory provides an in-memory message store, used by tests and
// the demo gateway when no database path is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"botgate/pkg/message"
	"botgate/pkg/store"
)

// Store keeps messages in insertion order in process memory.
type Store struct {
	mu     sync.RWMutex
	msgs   []message.Message
	byID   map[string]int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{byID: make(map[string]int)}
}

// Add persists one message.
func (s *Store) Add(_ context.Context, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[msg.ID] = len(s.msgs)
	s.msgs = append(s.msgs, msg)
	return nil
}

// Get returns a single message by id, or store.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.byID[id]
	if !ok {
		return message.Message{}, store.ErrNotFound
	}

	return s.msgs[index], nil
}

// All returns every message for a user, oldest first.
func (s *Store) All(_ context.Context, user message.User) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(user, func(int, message.Message) bool { return true }), nil
}

// From returns a user's messages starting at the anchor id, inclusive.
func (s *Store) From(_ context.Context, user message.User, fromID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor, ok := s.byID[fromID]
	if !ok {
		return nil, nil
	}

	return s.collect(user, func(index int, _ message.Message) bool { return index >= anchor }), nil
}

// FromDate returns a user's messages with timestamp at or after the instant.
func (s *Store) FromDate(_ context.Context, user message.User, from time.Time) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(user, func(_ int, msg message.Message) bool { return !msg.Timestamp.Before(from) }), nil
}

// collect filters the ordered log; callers must hold at least a read lock.
func (s *Store) collect(user message.User, keep func(int, message.Message) bool) []message.Message {
	var result []message.Message
	for index, msg := range s.msgs {
		if msg.User != user {
			continue
		}
		if keep(index, msg) {
			result = append(result, msg)
		}
	}

	return result
}

var _ store.Store = (*Store)(nil)
