package bot

import (
	"encoding/json"
	"net/http"
	"strings"

	"botgate/pkg/message"
)

// pushRequest is the wire payload accepted by the push endpoint.
type pushRequest struct {
	Channel       string         `json:"channel"`
	RecipientID   string         `json:"recipientId"`
	MessageText   string         `json:"messageText"`
	SecurityToken string         `json:"securityToken"`
	Context       map[string]any `json:"context,omitempty"`
}

// ExposePush mounts the push endpoint and stores the shared secret and
// optional re-targeting handler. An empty path mounts DefaultPushPath.
// Calling ExposePush again overwrites the token and handler; last write
// wins. The route itself is mounted once, at the first call's path.
func (b *Bot) ExposePush(securityToken, path string, pushHandler PushHandler) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPushPath
	}

	b.pushMu.Lock()
	defer b.pushMu.Unlock()

	b.pushToken = securityToken
	b.pushHandler = pushHandler

	if b.pushMounted {
		if path != b.pushPath {
			b.log.Warn("Push endpoint already mounted, keeping original path", "path", b.pushPath, "ignored", path)
		}
		return
	}

	b.pushPath = path
	b.pushMounted = true
	b.router.Post(path, b.handlePush)
	b.log.Info("Push endpoint exposed", "path", path)
}

// handlePush injects an externally triggered message into a channel.
//
// Bad payloads and token mismatches answer 400. An unknown target channel
// still answers 200 with nothing delivered or persisted; callers cannot
// tell the two outcomes apart.
func (b *Bot) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.log.Warn("Push request with malformed payload", "error", err)
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if req.Channel == "" || req.RecipientID == "" || req.MessageText == "" || req.SecurityToken == "" {
		b.log.Warn("Push request with missing fields", "channel", req.Channel, "recipient_id", req.RecipientID)
		http.Error(w, "channel, recipientId, messageText and securityToken are required", http.StatusBadRequest)
		return
	}

	b.pushMu.RLock()
	token := b.pushToken
	retarget := b.pushHandler
	b.pushMu.RUnlock()

	if req.SecurityToken != token {
		b.log.Warn("Push request with invalid security token", "channel", req.Channel)
		http.Error(w, "invalid security token", http.StatusBadRequest)
		return
	}

	candidate := message.NewResponse(
		message.User{ID: req.RecipientID, Channel: req.Channel},
		req.MessageText,
		req.Context,
	)

	targetChannel := req.Channel
	text := req.MessageText
	msgContext := req.Context

	if retarget != nil {
		overrideChannel, override := retarget(candidate)
		if overrideChannel != "" {
			targetChannel = overrideChannel
		}
		if override != nil {
			text = override.Text
			msgContext = override.Context
		}
	}

	ch, ok := b.lookup(targetChannel)
	if !ok {
		b.log.Warn("Push target channel not registered, dropping message", "channel", targetChannel)
		writeStatus(w, http.StatusOK)
		return
	}

	outbound := message.NewResponse(
		message.User{ID: req.RecipientID, Channel: targetChannel},
		text,
		msgContext,
	)

	b.persist(r.Context(), outbound)

	if err := ch.Send(r.Context(), outbound); err != nil {
		// Delivery is attempted exactly once; the response is still 200.
		b.log.Error("Push delivery failed", "channel", targetChannel, "message_id", outbound.ID, "error", err)
	}

	writeStatus(w, http.StatusOK)
}

func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": http.StatusText(status)})
}
