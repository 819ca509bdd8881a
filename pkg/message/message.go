// Package message defines the value types that flow between channels,
// the dispatch core, and the message store.
package message

import (
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is the wire format for message timestamps.
const TimestampFormat = "2006-01-02T15:04:05Z0700"

// Type distinguishes messages received from a user from messages sent back.
type Type string

const (
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
)

// Direction returns the wire marker for a message type: ">" for requests,
// "<" for responses.
func (t Type) Direction() string {
	if t == TypeRequest {
		return ">"
	}

	return "<"
}

// User identifies one end user on one channel. The same user id on two
// different channels is two different users.
type User struct {
	ID      string `json:"user_id"`
	Channel string `json:"channel"`
}

// Message is one conversation turn. Messages are immutable once created;
// build them through NewRequest or NewResponse.
type Message struct {
	ID        string         `json:"message_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"message_type"`
	User      User           `json:"user"`
	Text      string         `json:"text"`
	Context   map[string]any `json:"context,omitempty"`
}

// Response is a reply payload produced by the application handler or the
// push API, before it is wrapped into a full response Message.
type Response struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// NewRequest builds an inbound message with a generated id and timestamp.
func NewRequest(user User, text string, context map[string]any) Message {
	return newMessage(TypeRequest, user, text, context)
}

// NewResponse builds an outbound message with a generated id and timestamp.
func NewResponse(user User, text string, context map[string]any) Message {
	return newMessage(TypeResponse, user, text, context)
}

func newMessage(messageType Type, user User, text string, context map[string]any) Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      messageType,
		User:      user,
		Text:      text,
		Context:   context,
	}
}

// Record is the serialized shape returned by the history API. User id and
// channel are left out; the caller already supplied both in the request path.
type Record struct {
	MessageText string         `json:"messageText"`
	MessageID   string         `json:"messageId"`
	Timestamp   string         `json:"timestamp"`
	Direction   string         `json:"direction"`
	Context     map[string]any `json:"context,omitempty"`
}

// ToRecord converts a stored message into its history wire shape.
func ToRecord(msg Message) Record {
	return Record{
		MessageText: msg.Text,
		MessageID:   msg.ID,
		Timestamp:   msg.Timestamp.Format(TimestampFormat),
		Direction:   msg.Type.Direction(),
		Context:     msg.Context,
	}
}

// ToRecords converts a message slice, preserving order.
func ToRecords(msgs []Message) []Record {
	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, ToRecord(msg))
	}

	return records
}
