// Package sqlite provides a SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"botgate/pkg/message"
	"botgate/pkg/store"
)

// timeLayout pads nanoseconds to a fixed width so lexical comparison in
// SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists messages in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens a message database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// OpenMemory creates an in-memory database, useful for testing.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	// A single connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// seq orders messages created within the same clock tick.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL DEFAULT 0,
    timestamp DATETIME NOT NULL,
    message_type TEXT NOT NULL CHECK(message_type IN ('request','response')),
    user_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    text TEXT NOT NULL,
    context TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(channel, user_id, seq);
`

// Add persists one message.
func (s *Store) Add(ctx context.Context, msg message.Message) error {
	var contextJSON sql.NullString
	if len(msg.Context) > 0 {
		data, err := json.Marshal(msg.Context)
		if err != nil {
			return fmt.Errorf("marshalling message context: %w", err)
		}
		contextJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, seq, timestamp, message_type, user_id, channel, text, context)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages), ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.Timestamp.UTC().Format(timeLayout),
		string(msg.Type),
		msg.User.ID,
		msg.User.Channel,
		msg.Text,
		contextJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	return nil
}

// Get returns a single message by id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (message.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, message_type, user_id, channel, text, context
		FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, store.ErrNotFound
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("querying message %s: %w", id, err)
	}

	return msg, nil
}

// All returns every message for a user, oldest first.
func (s *Store) All(ctx context.Context, user message.User) ([]message.Message, error) {
	return s.query(ctx, `
		SELECT id, timestamp, message_type, user_id, channel, text, context
		FROM messages WHERE channel = ? AND user_id = ?
		ORDER BY seq`, user.Channel, user.ID)
}

// From returns a user's messages starting at the anchor id, inclusive.
func (s *Store) From(ctx context.Context, user message.User, fromID string) ([]message.Message, error) {
	return s.query(ctx, `
		SELECT id, timestamp, message_type, user_id, channel, text, context
		FROM messages
		WHERE channel = ? AND user_id = ?
		  AND seq >= COALESCE((SELECT seq FROM messages WHERE id = ?), 9223372036854775807)
		ORDER BY seq`, user.Channel, user.ID, fromID)
}

// FromDate returns a user's messages with timestamp at or after the instant.
func (s *Store) FromDate(ctx context.Context, user message.User, from time.Time) ([]message.Message, error) {
	return s.query(ctx, `
		SELECT id, timestamp, message_type, user_id, channel, text, context
		FROM messages WHERE channel = ? AND user_id = ? AND timestamp >= ?
		ORDER BY seq`, user.Channel, user.ID, from.UTC().Format(timeLayout))
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (message.Message, error) {
	var (
		msg         message.Message
		ts          string
		messageType string
		contextJSON sql.NullString
	)

	err := sc.Scan(&msg.ID, &ts, &messageType, &msg.User.ID, &msg.User.Channel, &msg.Text, &contextJSON)
	if err != nil {
		return message.Message{}, err
	}

	msg.Type = message.Type(messageType)

	parsed, err := time.Parse(timeLayout, ts)
	if err != nil {
		return message.Message{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}
	msg.Timestamp = parsed

	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &msg.Context); err != nil {
			return message.Message{}, fmt.Errorf("parsing message context: %w", err)
		}
	}

	return msg, nil
}

var _ store.Store = (*Store)(nil)
