package notification

import (
	"github.com/smallbiznis/adminwatch/internal/notification/repository"
	"github.com/smallbiznis/adminwatch/internal/notification/service"
	"github.com/smallbiznis/adminwatch/internal/notification/transport"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// OutboxModule runs delivery workers. It needs Module and an email provider.
var OutboxModule = fx.Module("notification.outbox",
	fx.Provide(transport.New),
	fx.Provide(NewOutbox),
	fx.Invoke(func(*Outbox) {}),
)
