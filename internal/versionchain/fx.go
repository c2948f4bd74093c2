package versionchain

import (
	"github.com/smallbiznis/ratecard/internal/versionchain/service"
	"go.uber.org/fx"
)

var Module = fx.Module("versionchain.service",
	fx.Provide(service.New),
)
