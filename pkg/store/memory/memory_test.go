package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"botgate/pkg/message"
	"botgate/pkg/store"
)

var alice = message.User{ID: "alice", Channel: "telegram"}

func seedConversation(t *testing.T, s *Store) []message.Message {
	t.Helper()

	msgs := []message.Message{
		message.NewRequest(alice, "hello", nil),
		message.NewResponse(alice, "hi there", nil),
		message.NewRequest(alice, "how are you?", nil),
	}
	for _, msg := range msgs {
		if err := s.Add(context.Background(), msg); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}

	return msgs
}

func TestGetRoundTrip(t *testing.T) {
	s := New()
	msgs := seedConversation(t, s)

	got, err := s.Get(context.Background(), msgs[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "hi there" || got.Type != message.TypeResponse {
		t.Fatalf("got %+v, want the stored response", got)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := New()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestAllIsOrderedAndScoped(t *testing.T) {
	s := New()
	msgs := seedConversation(t, s)

	// Same user id on another channel is a different user.
	other := message.NewRequest(message.User{ID: "alice", Channel: "slack"}, "elsewhere", nil)
	if err := s.Add(context.Background(), other); err != nil {
		t.Fatalf("add message: %v", err)
	}

	got, err := s.All(context.Background(), alice)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i, msg := range got {
		if msg.ID != msgs[i].ID {
			t.Fatalf("message %d = %q, want %q", i, msg.ID, msgs[i].ID)
		}
	}
}

func TestFromAnchorIsInclusive(t *testing.T) {
	s := New()
	msgs := seedConversation(t, s)

	got, err := s.From(context.Background(), alice, msgs[1].ID)
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != msgs[1].ID {
		t.Fatalf("first message = %q, want anchor %q", got[0].ID, msgs[1].ID)
	}
}

func TestFromUnknownAnchor(t *testing.T) {
	s := New()
	seedConversation(t, s)

	got, err := s.From(context.Background(), alice, "missing")
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d messages, want none for an unknown anchor", len(got))
	}
}

func TestFromDate(t *testing.T) {
	s := New()
	old := message.Message{
		ID:        "old",
		Timestamp: time.Now().UTC().Add(-time.Hour),
		Type:      message.TypeRequest,
		User:      alice,
		Text:      "yesterday",
	}
	if err := s.Add(context.Background(), old); err != nil {
		t.Fatalf("add message: %v", err)
	}
	recent := seedConversation(t, s)

	got, err := s.FromDate(context.Background(), alice, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("fromdate: %v", err)
	}
	if len(got) != len(recent) {
		t.Fatalf("got %d messages, want %d", len(got), len(recent))
	}
	for _, msg := range got {
		if msg.ID == "old" {
			t.Fatal("old message must be excluded by the date anchor")
		}
	}
}
