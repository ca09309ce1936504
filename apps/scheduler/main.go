package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/admin"
	"github.com/smallbiznis/adminwatch/internal/audit"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/smallbiznis/adminwatch/internal/evaluation"
	"github.com/smallbiznis/adminwatch/internal/health"
	"github.com/smallbiznis/adminwatch/internal/messaging"
	"github.com/smallbiznis/adminwatch/internal/notification"
	"github.com/smallbiznis/adminwatch/internal/observability"
	"github.com/smallbiznis/adminwatch/internal/providers/email"
	"github.com/smallbiznis/adminwatch/internal/ratelimit"
	"github.com/smallbiznis/adminwatch/internal/reference"
	"github.com/smallbiznis/adminwatch/internal/snapshot"
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

		// Domain services required by the evaluation cycle
		reference.Module,
		admin.Module,
		audit.Module,
		authorization.Module,
		threshold.Module,
		snapshot.Module,
		snapshot.IngestModule,
		health.Module,
		notification.Module,
		notification.OutboxModule,
		email.Module,

		// No server module!
		evaluation.Module,
	)
	app.Run()
}

// The scheduler uses its own node so ids never collide with the API process.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
