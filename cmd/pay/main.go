package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/config"
	"github.com/responsiv/pay/internal/logger"
	"github.com/responsiv/pay/internal/migration"
	"github.com/responsiv/pay/internal/server"
	"github.com/responsiv/pay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		server.Module,
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
