package channel

import (
	"context"

	"github.com/go-chi/chi/v5"

	"botgate/pkg/message"
)

// Callback is invoked by an adapter for every inbound user message. A nil
// response means no reply is sent for this turn.
type Callback func(context.Context, message.Message) (*message.Response, error)

// Channel bridges one external transport (for example Telegram) into the
// dispatch core. Configure is called exactly once, at registration time,
// so the adapter can mount its inbound webhooks on the shared router.
// Send delivers an outbound message; the core does not retry failures.
type Channel interface {
	Configure(r chi.Router, name string, callback Callback)
	Send(ctx context.Context, msg message.Message) error
}
