package message

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDirectionMarkers(t *testing.T) {
	if got := TypeRequest.Direction(); got != ">" {
		t.Fatalf("request direction = %q, want %q", got, ">")
	}
	if got := TypeResponse.Direction(); got != "<" {
		t.Fatalf("response direction = %q, want %q", got, "<")
	}
}

func TestNewRequestFields(t *testing.T) {
	user := User{ID: "u1", Channel: "telegram"}
	msg := NewRequest(user, "hello", map[string]any{"chat_id": "42"})

	if msg.ID == "" {
		t.Fatal("expected a generated message id")
	}
	if msg.Type != TypeRequest {
		t.Fatalf("type = %q, want %q", msg.Type, TypeRequest)
	}
	if msg.User != user {
		t.Fatalf("user = %+v, want %+v", msg.User, user)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
	if msg.Context["chat_id"] != "42" {
		t.Fatalf("context chat_id = %v, want %q", msg.Context["chat_id"], "42")
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	user := User{ID: "u1", Channel: "slack"}
	first := NewRequest(user, "a", nil)
	second := NewResponse(user, "b", nil)

	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both were %q", first.ID)
	}
}

func TestToRecordWireShape(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	msg := Message{
		ID:        "id-1",
		Timestamp: ts,
		Type:      TypeRequest,
		User:      User{ID: "u1", Channel: "telegram"},
		Text:      "hello",
	}

	data, err := json.Marshal(ToRecord(msg))
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}

	if wire["messageText"] != "hello" {
		t.Fatalf("messageText = %v, want %q", wire["messageText"], "hello")
	}
	if wire["messageId"] != "id-1" {
		t.Fatalf("messageId = %v, want %q", wire["messageId"], "id-1")
	}
	if wire["timestamp"] != "2026-03-14T09:26:53Z" {
		t.Fatalf("timestamp = %v, want %q", wire["timestamp"], "2026-03-14T09:26:53Z")
	}
	if wire["direction"] != ">" {
		t.Fatalf("direction = %v, want %q", wire["direction"], ">")
	}
	if _, present := wire["context"]; present {
		t.Fatal("empty context must be omitted from the wire shape")
	}
}

func TestToRecordZoneOffset(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	msg := Message{
		ID:        "id-2",
		Timestamp: time.Date(2026, 1, 2, 10, 0, 0, 0, zone),
		Type:      TypeResponse,
		User:      User{ID: "u1", Channel: "slack"},
		Text:      "hi",
	}

	record := ToRecord(msg)
	if record.Timestamp != "2026-01-02T10:00:00+0100" {
		t.Fatalf("timestamp = %q, want %q", record.Timestamp, "2026-01-02T10:00:00+0100")
	}
	if record.Direction != "<" {
		t.Fatalf("direction = %q, want %q", record.Direction, "<")
	}
}

func TestToRecordsPreservesOrder(t *testing.T) {
	user := User{ID: "u1", Channel: "telegram"}
	msgs := []Message{
		NewRequest(user, "first", nil),
		NewResponse(user, "second", nil),
		NewRequest(user, "third", nil),
	}

	records := ToRecords(msgs)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i, record := range records {
		if record.MessageID != msgs[i].ID {
			t.Fatalf("record %d id = %q, want %q", i, record.MessageID, msgs[i].ID)
		}
	}
}
