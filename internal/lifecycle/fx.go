package lifecycle

import (
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/lifecycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lifecycle.service",
	fx.Provide(
		fx.Annotate(NewLogNotifier,
			fx.As(new(lifecycledomain.Notifier)),
			fx.ResultTags(`group:"lifecycle_notifiers"`),
		),
		fx.Annotate(NewMetricsNotifier,
			fx.As(new(lifecycledomain.Notifier)),
			fx.ResultTags(`group:"lifecycle_notifiers"`),
		),
	),
	fx.Provide(service.New),
)
