package injector

import (
	"github.com/zeusync/ardice/internal/config"
	"github.com/zeusync/ardice/internal/core/observability/log"
)

// ProvideLogger builds the process logger at the configured level.
func ProvideLogger(cfg config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.Log.Level))
}
