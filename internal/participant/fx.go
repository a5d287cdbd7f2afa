package participant

import (
	"github.com/smallbiznis/peppolway/internal/participant/repository"
	"github.com/smallbiznis/peppolway/internal/participant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("participant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
