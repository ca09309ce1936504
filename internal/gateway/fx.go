package gateway

import (
	"github.com/smallbiznis/adminwatch/internal/gateway/service"
	"go.uber.org/fx"
)

// Module needs the admin, audit, authorization and reference modules.
var Module = fx.Module("gateway.service",
	fx.Provide(service.New),
)
