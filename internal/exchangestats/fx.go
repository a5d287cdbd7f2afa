package exchangestats

import (
	"github.com/smallbiznis/peppolway/internal/exchangestats/repository"
	"github.com/smallbiznis/peppolway/internal/exchangestats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("exchangestats.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
		service.NewRecorder,
	),
)
