package httpap

import (
	"github.com/smallbiznis/peppolway/internal/config"
	"github.com/smallbiznis/peppolway/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("transport.httpap",
	fx.Provide(func(cfg config.Config, log *zap.Logger) transport.AccessPoint {
		return New(cfg.Exchange, log)
	}),
)
