// Package store defines the persistence contract the dispatch core and
// history API depend on. The core treats the store as optional: a nil
// store disables persistence without changing routing behavior.
package store

import (
	"context"
	"errors"
	"time"

	"botgate/pkg/message"
)

// ErrNotFound is returned when a message id is not present in the store.
var ErrNotFound = errors.New("message not found")

// Store persists conversation turns. Implementations must be safe for
// concurrent use and must return a user's messages in non-decreasing
// creation order.
type Store interface {
	// Add persists one message. Messages are never updated or deleted by
	// the core; retention is the implementation's concern.
	Add(ctx context.Context, msg message.Message) error

	// Get returns a single message by id, or ErrNotFound.
	Get(ctx context.Context, id string) (message.Message, error)

	// All returns every message for a user, oldest first.
	All(ctx context.Context, user message.User) ([]message.Message, error)

	// From returns a user's messages starting at the message with the
	// given id, inclusive, oldest first. An unknown anchor yields an
	// empty result.
	From(ctx context.Context, user message.User, fromID string) ([]message.Message, error)

	// FromDate returns a user's messages with a timestamp at or after
	// the given instant, oldest first.
	FromDate(ctx context.Context, user message.User, from time.Time) ([]message.Message, error)
}
