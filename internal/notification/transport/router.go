// Package transport delivers outbox rows over email, NATS and the log.
package transport

import (
	"context"
	"fmt"

	"github.com/smallbiznis/adminwatch/internal/notification/domain"
)

// Router dispatches a message to the transport registered for its channel.
type Router struct {
	routes map[domain.Channel]domain.Transport
}

func NewRouter() *Router {
	return &Router{routes: map[domain.Channel]domain.Transport{}}
}

// Handle registers t for channel, replacing any previous registration.
func (r *Router) Handle(channel domain.Channel, t domain.Transport) *Router {
	if t != nil {
		r.routes[channel] = t
	}
	return r
}

func (r *Router) Send(ctx context.Context, msg domain.Message) error {
	t, ok := r.routes[msg.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransportNotWired, msg.Channel)
	}
	return t.Send(ctx, msg)
}
