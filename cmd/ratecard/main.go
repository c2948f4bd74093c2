package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/config"
	"github.com/smallbiznis/ratecard/internal/lifecycle"
	"github.com/smallbiznis/ratecard/internal/migration"
	"github.com/smallbiznis/ratecard/internal/observability"
	"github.com/smallbiznis/ratecard/internal/ratetable"
	"github.com/smallbiznis/ratecard/internal/scopelock"
	"github.com/smallbiznis/ratecard/internal/server"
	"github.com/smallbiznis/ratecard/internal/versionchain"
	"github.com/smallbiznis/ratecard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		scopelock.Module,
		migration.Module,

		// Functional domains
		ratetable.Module,
		lifecycle.Module,
		versionchain.Module,

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
