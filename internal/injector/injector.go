//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/ardice/internal/config"
	"github.com/zeusync/ardice/internal/server"
)

func InitializeServer(cfg config.Config) *server.Server {
	wire.Build(ProvideLogger, server.NewServer)
	return nil
}
