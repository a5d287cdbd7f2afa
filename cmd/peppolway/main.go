// The peppolway command runs the whole exchange subsystem in one process:
// HTTP API, dispatch and poll workers, and startup migrations.
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
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		dispatch.Module,
		migration.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
