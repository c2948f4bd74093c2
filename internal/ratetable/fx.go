package ratetable

import (
	"github.com/smallbiznis/ratecard/internal/ratetable/repository"
	"github.com/smallbiznis/ratecard/internal/ratetable/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ratetable.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
