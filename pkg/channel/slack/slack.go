// Package slack bridges the Slack Events API into the dispatch core.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	goslack "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"botgate/pkg/channel"
	"botgate/pkg/config"
	"botgate/pkg/message"
)

// Context keys threaded through a conversation turn so replies land in
// the originating Slack conversation and thread.
const (
	contextConversation = "slack_channel"
	contextThreadTS     = "thread_ts"
)

// Adapter implements channel.Channel for Slack.
type Adapter struct {
	cfg    config.SlackConfig
	log    *slog.Logger
	client *goslack.Client

	name     string
	callback channel.Callback
}

// NewAdapter validates Slack configuration and constructs an adapter.
func NewAdapter(cfg config.SlackConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("channels.slack.bottoken is required")
	}
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return nil, errors.New("channels.slack.signingsecret is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:    cfg,
		log:    log.With("component", "channel.slack"),
		client: goslack.New(cfg.BotToken),
	}, nil
}

// Configure mounts the Events API endpoint and stores the inbound callback.
func (a *Adapter) Configure(r chi.Router, name string, callback channel.Callback) {
	a.name = name
	a.callback = callback
	r.Post("/webhooks/"+name, a.handleEvent)
	a.log.Info("Slack events endpoint mounted", "path", "/webhooks/"+name)
}

// Send delivers an outbound message. The target conversation comes from
// the message context when present, falling back to the user id.
func (a *Adapter) Send(ctx context.Context, msg message.Message) error {
	conversation := msg.User.ID
	if target, ok := msg.Context[contextConversation].(string); ok && target != "" {
		conversation = target
	}

	options := []goslack.MsgOption{goslack.MsgOptionText(msg.Text, false)}
	if threadTS, ok := msg.Context[contextThreadTS].(string); ok && threadTS != "" {
		options = append(options, goslack.MsgOptionTS(threadTS))
	}

	if _, _, err := a.client.PostMessageContext(ctx, conversation, options...); err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}

	return nil
}

func (a *Adapter) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !a.verifySignature(r.Header, body) {
		a.log.Warn("Rejected event with invalid signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "invalid challenge payload", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		a.handleCallback(r.Context(), event.InnerEvent)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (a *Adapter) handleCallback(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	msgEvent, ok := inner.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Skip bot messages to avoid loops.
	if msgEvent.BotID != "" || msgEvent.User == "" {
		return
	}

	content := strings.TrimSpace(msgEvent.Text)
	if content == "" {
		return
	}

	inbound := message.NewRequest(
		message.User{ID: msgEvent.User, Channel: a.name},
		content,
		map[string]any{
			contextConversation: msgEvent.Channel,
			contextThreadTS:     msgEvent.ThreadTimeStamp,
		},
	)
	a.log.Info("Received message", "conversation", msgEvent.Channel, "sender_id", msgEvent.User)

	response, err := a.callback(ctx, inbound)
	if err != nil {
		a.log.Error("Failed to process inbound message", "error", err)
		return
	}
	if response == nil {
		return
	}

	reply := message.NewResponse(inbound.User, response.Text, response.Context)
	if reply.Context == nil {
		reply.Context = inbound.Context
	}

	if err := a.Send(ctx, reply); err != nil {
		a.log.Error("Failed to send slack reply", "conversation", msgEvent.Channel, "error", err)
	}
}

// verifySignature checks the request HMAC against the signing secret.
func (a *Adapter) verifySignature(header http.Header, body []byte) bool {
	verifier, err := goslack.NewSecretsVerifier(header, a.cfg.SigningSecret)
	if err != nil {
		return false
	}
	if _, err := verifier.Write(body); err != nil {
		return false
	}

	return verifier.Ensure() == nil
}

var _ channel.Channel = (*Adapter)(nil)
