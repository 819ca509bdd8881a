package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"botgate/pkg/channel"
	"botgate/pkg/message"
	"botgate/pkg/store/memory"
)

// fakeChannel records registration and outbound deliveries.
type fakeChannel struct {
	mu sync.Mutex

	configureCalls int
	callback       channel.Callback
	sent           []message.Message
	sendErr        error
}

func (f *fakeChannel) Configure(_ chi.Router, _ string, callback channel.Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configureCalls++
	f.callback = callback
}

func (f *fakeChannel) Send(_ context.Context, msg message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.sendErr
}

func (f *fakeChannel) sentMessages() []message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]message.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func echo(_ context.Context, msg message.Message) (*message.Response, error) {
	return &message.Response{Text: "echo: " + msg.Text}, nil
}

func TestNewRequiresRouterAndHandler(t *testing.T) {
	if _, err := New(nil, echo); err == nil {
		t.Fatal("expected error for nil router")
	}
	if _, err := New(chi.NewRouter(), nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestRegisterHandsOutCallback(t *testing.T) {
	b, err := New(chi.NewRouter(), echo)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	ch := &fakeChannel{}
	if err := b.Register("telegram", ch); err != nil {
		t.Fatalf("register: %v", err)
	}

	if ch.configureCalls != 1 {
		t.Fatalf("configure calls = %d, want 1", ch.configureCalls)
	}
	if ch.callback == nil {
		t.Fatal("expected the channel to receive a dispatch callback")
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	b, err := New(chi.NewRouter(), echo)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	first := &fakeChannel{}
	if err := b.Register("telegram", first); err != nil {
		t.Fatalf("register: %v", err)
	}

	second := &fakeChannel{}
	err = b.Register("telegram", second)
	if !errors.Is(err, ErrChannelExists) {
		t.Fatalf("err = %v, want ErrChannelExists", err)
	}
	if second.configureCalls != 0 {
		t.Fatal("duplicate registration must not configure the new channel")
	}

	// The original registration stays in place.
	ch, ok := b.lookup("telegram")
	if !ok || ch != channel.Channel(first) {
		t.Fatal("original channel must remain registered")
	}
}

func TestDispatchPersistsBothTurns(t *testing.T) {
	st := memory.New()
	b, err := New(chi.NewRouter(), echo, WithStore(st))
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	ch := &fakeChannel{}
	if err := b.Register("telegram", ch); err != nil {
		t.Fatalf("register: %v", err)
	}

	user := message.User{ID: "u1", Channel: "telegram"}
	inbound := message.NewRequest(user, "hello", nil)

	response, err := ch.callback(context.Background(), inbound)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if response == nil || response.Text != "echo: hello" {
		t.Fatalf("response = %+v, want the echoed reply", response)
	}

	stored, err := st.All(context.Background(), user)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d messages, want 2", len(stored))
	}
	if stored[0].Type != message.TypeRequest || stored[0].Text != "hello" {
		t.Fatalf("first stored message = %+v, want the request", stored[0])
	}
	if stored[1].Type != message.TypeResponse || stored[1].Text != "echo: hello" {
		t.Fatalf("second stored message = %+v, want the response", stored[1])
	}
}

func TestDispatchWithoutReplyPersistsRequestOnly(t *testing.T) {
	st := memory.New()
	silent := func(context.Context, message.Message) (*message.Response, error) {
		return nil, nil
	}

	b, err := New(chi.NewRouter(), silent, WithStore(st))
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	ch := &fakeChannel{}
	if err := b.Register("telegram", ch); err != nil {
		t.Fatalf("register: %v", err)
	}

	user := message.User{ID: "u1", Channel: "telegram"}
	response, err := ch.callback(context.Background(), message.NewRequest(user, "ping", nil))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if response != nil {
		t.Fatalf("response = %+v, want nil for a silent turn", response)
	}

	stored, err := st.All(context.Background(), user)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(stored) != 1 || stored[0].Type != message.TypeRequest {
		t.Fatalf("stored = %+v, want just the request", stored)
	}
}

func TestDispatchHandlerFailureStillPersistsRequest(t *testing.T) {
	st := memory.New()
	failing := func(context.Context, message.Message) (*message.Response, error) {
		return nil, errors.New("boom")
	}

	b, err := New(chi.NewRouter(), failing, WithStore(st))
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	ch := &fakeChannel{}
	if err := b.Register("telegram", ch); err != nil {
		t.Fatalf("register: %v", err)
	}

	user := message.User{ID: "u1", Channel: "telegram"}
	if _, err := ch.callback(context.Background(), message.NewRequest(user, "ping", nil)); err == nil {
		t.Fatal("expected the handler error to surface")
	}

	stored, err := st.All(context.Background(), user)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d messages, want the request alone", len(stored))
	}
}

func TestDispatchWithoutStore(t *testing.T) {
	b, err := New(chi.NewRouter(), echo)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	ch := &fakeChannel{}
	if err := b.Register("telegram", ch); err != nil {
		t.Fatalf("register: %v", err)
	}

	user := message.User{ID: "u1", Channel: "telegram"}
	response, err := ch.callback(context.Background(), message.NewRequest(user, "hello", nil))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if response == nil {
		t.Fatal("expected a reply even without persistence")
	}
}
