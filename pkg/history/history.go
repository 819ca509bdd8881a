// Package history exposes the read-only message retrieval endpoints,
// layered on the message store and gated by a static token.
package history

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"botgate/pkg/message"
	"botgate/pkg/store"
)

// dateOnlyFormat is accepted for fromDate anchors alongside the full
// timestamp format.
const dateOnlyFormat = "2006-01-02"

// API serves message history for one store behind one access token.
type API struct {
	store store.Store
	token string
	log   *slog.Logger
}

// Register mounts the history endpoints under getPath. Every route takes
// the access token as its final path segment; a mismatch answers 400, as
// do unknown ids and empty result sets.
func Register(r chi.Router, st store.Store, getPath, token string, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}

	api := &API{store: st, token: token, log: log.With("component", "history")}

	r.Route(getPath, func(r chi.Router) {
		r.Get("/{messageID}/token/{tokenID}", api.handleGetMessage)
		r.Route("/channel/{channelID}/user/{userID}", func(r chi.Router) {
			r.Get("/token/{tokenID}", api.handleAllMessages)
			r.Get("/fromId/{fromID}/token/{tokenID}", api.handleMessagesFromID)
			r.Get("/fromDate/{fromDate}/token/{tokenID}", api.handleMessagesFromDate)
		})
	})

	return api
}

// authorized checks the path token against the configured one. A
// mismatch answers 400, not 401.
func (a *API) authorized(w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "tokenID") != a.token {
		a.log.Warn("History request with invalid token", "path", r.URL.Path)
		http.Error(w, "invalid token", http.StatusBadRequest)
		return false
	}

	if a.store == nil {
		http.Error(w, "no message store configured", http.StatusBadRequest)
		return false
	}

	return true
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	msg, err := a.store.Get(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		http.Error(w, "message not found", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, message.ToRecord(msg))
}

func (a *API) handleAllMessages(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	msgs, err := a.store.All(r.Context(), pathUser(r))
	a.respondList(w, msgs, err)
}

func (a *API) handleMessagesFromID(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	msgs, err := a.store.From(r.Context(), pathUser(r), chi.URLParam(r, "fromID"))
	a.respondList(w, msgs, err)
}

func (a *API) handleMessagesFromDate(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	from, ok := parseDate(chi.URLParam(r, "fromDate"))
	if !ok {
		http.Error(w, "invalid fromDate", http.StatusBadRequest)
		return
	}

	msgs, err := a.store.FromDate(r.Context(), pathUser(r), from)
	a.respondList(w, msgs, err)
}

// respondList answers 400 for store failures and empty histories alike.
func (a *API) respondList(w http.ResponseWriter, msgs []message.Message, err error) {
	if err != nil {
		a.log.Error("History query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusBadRequest)
		return
	}
	if len(msgs) == 0 {
		http.Error(w, "no messages", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, message.ToRecords(msgs))
}

func pathUser(r *http.Request) message.User {
	return message.User{
		ID:      chi.URLParam(r, "userID"),
		Channel: chi.URLParam(r, "channelID"),
	}
}

func parseDate(value string) (time.Time, bool) {
	if t, err := time.Parse(message.TimestampFormat, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateOnlyFormat, value); err == nil {
		return t, true
	}

	return time.Time{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
