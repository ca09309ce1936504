package snapshot

import (
	"github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"github.com/smallbiznis/adminwatch/internal/snapshot/repository"
	"github.com/smallbiznis/adminwatch/internal/snapshot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("snapshot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Source { return svc }),
)

// IngestModule starts the NATS snapshot subscriber when configured.
var IngestModule = fx.Module("snapshot.ingest",
	fx.Provide(NewSubscriber),
	fx.Invoke(func(*Subscriber) {}),
)
