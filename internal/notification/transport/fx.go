package transport

import (
	"github.com/nats-io/nats.go"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Conn     *nats.Conn `optional:"true"`
	Provider email.Provider
	Contacts admindomain.Service
}

// New builds the channel router. Email uses SMTP when configured, push and
// in-app use NATS when connected; anything else falls back to the log.
func New(p Params) domain.Transport {
	fallback := NewLog(p.Log)
	router := NewRouter()

	if p.Config.Email.Enabled() {
		router.Handle(domain.ChannelEmail, NewEmail(p.Provider, p.Contacts))
	} else {
		router.Handle(domain.ChannelEmail, fallback)
	}

	if p.Conn != nil {
		publisher := NewPublisher(p.Conn, p.Config.NATS.NotifySubject)
		router.Handle(domain.ChannelPush, publisher).Handle(domain.ChannelInApp, publisher)
	} else {
		router.Handle(domain.ChannelPush, fallback).Handle(domain.ChannelInApp, fallback)
	}
	return router
}
