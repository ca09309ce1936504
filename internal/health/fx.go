package health

import (
	"github.com/smallbiznis/adminwatch/internal/health/repository"
	"github.com/smallbiznis/adminwatch/internal/health/service"
	"go.uber.org/fx"
)

var Module = fx.Module("health.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
