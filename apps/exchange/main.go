package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/clock"
	"github.com/smallbiznis/peppolway/internal/config"
	"github.com/smallbiznis/peppolway/internal/migration"
	"github.com/smallbiznis/peppolway/internal/observability"
	"github.com/smallbiznis/peppolway/internal/server"
	"github.com/smallbiznis/peppolway/internal/transmission/dispatch"
	"github.com/smallbiznis/peppolway/pkg/db"
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

		// HTTP surface plus the exchange feature modules it imports
		server.Module,

		// Background delivery loops
		dispatch.Module,

		migration.Module,
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
