package transmission

import (
	"github.com/smallbiznis/peppolway/internal/transmission/repository"
	"github.com/smallbiznis/peppolway/internal/transmission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transmission.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
