package admin

import (
	"github.com/smallbiznis/adminwatch/internal/admin/repository"
	"github.com/smallbiznis/adminwatch/internal/admin/service"
	"go.uber.org/fx"
)

var Module = fx.Module("admin.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
