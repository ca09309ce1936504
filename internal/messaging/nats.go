// Package messaging owns the shared NATS connection.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/adminwatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("messaging.nats",
	fx.Provide(NewConn),
)

// NewConn connects to NATS when NATS_URL is set. It returns nil otherwise and
// callers fall back to their non-NATS behaviour.
func NewConn(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*nats.Conn, error) {
	if !cfg.NATS.Enabled() {
		return nil, nil
	}
	log = log.Named("messaging.nats")

	conn, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.AppName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := conn.Drain(); err != nil {
				conn.Close()
			}
			return nil
		},
	})
	return conn, nil
}
