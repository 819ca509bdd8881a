// Package telegram bridges Telegram updates into the dispatch core via
// the Bot API webhook.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"botgate/pkg/channel"
	"botgate/pkg/config"
	"botgate/pkg/message"
)

const messagePreviewLimit = 240

// secretTokenHeader carries the webhook secret Telegram echoes back on
// every delivery when one was set via setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// contextChatID threads the originating chat through a conversation turn
// so replies land in the right chat even for group messages.
const contextChatID = "chat_id"

// Adapter implements channel.Channel for Telegram.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
	bot       *telego.Bot

	name     string
	callback channel.Callback
}

// NewAdapter validates Telegram configuration and constructs an adapter.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
		bot:       bot,
	}, nil
}

// Configure mounts the webhook endpoint and stores the inbound callback.
// The webhook URL to hand to setWebhook is /webhooks/{name}.
func (a *Adapter) Configure(r chi.Router, name string, callback channel.Callback) {
	a.name = name
	a.callback = callback
	r.Post("/webhooks/"+name, a.handleUpdate)
	a.log.Info("Telegram webhook mounted", "path", "/webhooks/"+name)
}

// Send delivers an outbound message. The target chat comes from the
// message context when present, falling back to the user id.
func (a *Adapter) Send(ctx context.Context, msg message.Message) error {
	target := msg.User.ID
	if chat, ok := msg.Context[contextChatID].(string); ok && chat != "" {
		target = chat
	}

	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", target, err)
	}

	if _, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

func (a *Adapter) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Secret != "" && r.Header.Get(secretTokenHeader) != a.cfg.Secret {
		a.log.Warn("Rejected webhook delivery with bad secret token")
		http.Error(w, "invalid secret token", http.StatusUnauthorized)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid update payload", http.StatusBadRequest)
		return
	}

	// Always acknowledge understood updates so Telegram does not redeliver.
	defer w.WriteHeader(http.StatusOK)

	tgMessage := update.Message
	if tgMessage == nil || tgMessage.From == nil {
		return
	}

	content := strings.TrimSpace(tgMessage.Text)
	if content == "" {
		// Non-text updates are ignored; the core routes text turns only.
		return
	}

	senderID := strconv.FormatInt(tgMessage.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return
	}

	chatID := strconv.FormatInt(tgMessage.Chat.ID, 10)
	inbound := message.NewRequest(
		message.User{ID: senderID, Channel: a.name},
		content,
		map[string]any{
			contextChatID: chatID,
			"update_id":   update.UpdateID,
		},
	)
	a.log.Info("Received message", "chat_id", chatID, "sender_id", senderID, "content", previewText(content))

	response, err := a.callback(r.Context(), inbound)
	if err != nil {
		a.log.Error("Failed to process inbound message", "error", err)
		return
	}
	if response == nil {
		return
	}

	reply := message.NewResponse(inbound.User, response.Text, response.Context)
	if reply.Context == nil {
		reply.Context = map[string]any{contextChatID: chatID}
	}

	if err := a.Send(r.Context(), reply); err != nil {
		a.log.Error("Failed to send telegram reply", "chat_id", chatID, "error", err)
	}
}

// senderAllowed checks whether a sender is permitted by allowfrom config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allowfrom values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

var _ channel.Channel = (*Adapter)(nil)
