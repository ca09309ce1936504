package evaluation

import (
	"context"

	"github.com/smallbiznis/adminwatch/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("evaluation",
	fx.Provide(config.NewEvaluationConfigHolder),
	fx.Provide(New),
	fx.Invoke(RegisterScheduler),
)

func RegisterScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
