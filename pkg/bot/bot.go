// Package bot implements the dispatch core: a channel registry, the
// synchronous inbound round trip between channel adapters and the
// application handler, and the asynchronous push pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-chi/chi/v5"

	"botgate/pkg/channel"
	"botgate/pkg/message"
	"botgate/pkg/store"
)

// DefaultPushPath is the push endpoint mounted when ExposePush is called
// with an empty path.
const DefaultPushPath = "/BotPushBack"

// ErrChannelExists is returned when a channel name is registered twice.
var ErrChannelExists = errors.New("channel already registered")

// Handler is the application-supplied callback invoked for every inbound
// message. A nil response means no reply is sent for that turn.
type Handler func(context.Context, message.Message) (*message.Response, error)

// PushHandler may re-target a push message before delivery. It receives
// the candidate outbound message and returns the channel name to deliver
// on and the response to deliver. Implementations must be side-effect
// free; returning the candidate's own channel and text leaves the push
// untouched.
type PushHandler func(message.Message) (string, *message.Response)

// Bot routes messages between registered channels and the application
// handler. Construct one per process and share it with every adapter.
type Bot struct {
	router  chi.Router
	handler Handler
	store   store.Store
	log     *slog.Logger

	mu       sync.RWMutex
	channels map[string]channel.Channel

	pushMu      sync.RWMutex
	pushToken   string
	pushHandler PushHandler
	pushPath    string
	pushMounted bool
}

// Option customizes a Bot at construction time.
type Option func(*Bot)

// WithStore enables message persistence. Without it the bot routes
// messages but keeps no history.
func WithStore(st store.Store) Option {
	return func(b *Bot) { b.store = st }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bot) { b.log = log }
}

// New creates a dispatch core mounted on the given router.
func New(router chi.Router, handler Handler, opts ...Option) (*Bot, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	b := &Bot{
		router:   router,
		handler:  handler,
		channels: make(map[string]channel.Channel),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.log == nil {
		b.log = slog.Default()
	}
	b.log = b.log.With("component", "bot")

	return b, nil
}

// Register adds a channel under a unique name and hands the adapter the
// inbound callback it must invoke for every message it receives. A
// duplicate name fails with ErrChannelExists and leaves the registry
// unchanged.
func (b *Bot) Register(name string, ch channel.Channel) error {
	if name == "" {
		return errors.New("channel name is required")
	}
	if ch == nil {
		return errors.New("channel is required")
	}

	b.mu.Lock()
	if _, exists := b.channels[name]; exists {
		b.mu.Unlock()
		return fmt.Errorf("register %s: %w", name, ErrChannelExists)
	}
	b.channels[name] = ch
	b.mu.Unlock()

	ch.Configure(b.router, name, b.dispatch)
	b.log.Info("Channel registered", "channel", name)

	return nil
}

// lookup resolves a registered channel by name.
func (b *Bot) lookup(name string) (channel.Channel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.channels[name]
	return ch, ok
}

// dispatch is the synchronous inbound path. The inbound message is
// persisted before the handler runs, so the audit trail survives handler
// failures; the reply is persisted only when one exists.
func (b *Bot) dispatch(ctx context.Context, msg message.Message) (*message.Response, error) {
	b.persist(ctx, msg)

	response, err := b.handler(ctx, msg)
	if err != nil {
		b.log.Error("Handler failed", "channel", msg.User.Channel, "user_id", msg.User.ID, "error", err)
		return nil, err
	}

	if response == nil {
		return nil, nil
	}

	b.persist(ctx, message.NewResponse(msg.User, response.Text, response.Context))

	return response, nil
}

// persist writes a message to the store when one is configured. Store
// failures are logged and do not fail the conversation turn.
func (b *Bot) persist(ctx context.Context, msg message.Message) {
	if b.store == nil {
		return
	}

	if err := b.store.Add(ctx, msg); err != nil {
		b.log.Error("Failed to persist message", "message_id", msg.ID, "error", err)
	}
}
