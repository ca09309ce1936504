package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/access"
	"github.com/smallbiznis/adminwatch/internal/admin"
	"github.com/smallbiznis/adminwatch/internal/audit"
	"github.com/smallbiznis/adminwatch/internal/auth"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/gateway"
	"github.com/smallbiznis/adminwatch/internal/health"
	"github.com/smallbiznis/adminwatch/internal/messaging"
	"github.com/smallbiznis/adminwatch/internal/notification"
	"github.com/smallbiznis/adminwatch/internal/observability"
	"github.com/smallbiznis/adminwatch/internal/ratelimit"
	"github.com/smallbiznis/adminwatch/internal/reference"
	"github.com/smallbiznis/adminwatch/internal/server"
	"github.com/smallbiznis/adminwatch/internal/threshold"
	"github.com/smallbiznis/adminwatch/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		messaging.Module,

		// Admin surface
		auth.Module,
		reference.Module,
		admin.Module,
		audit.Module,
		authorization.Module,
		access.Module,
		threshold.Module,
		health.Module,
		notification.Module,
		gateway.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
