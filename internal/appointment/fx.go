package appointment

import (
	"github.com/dentora/dentora/internal/appointment/repository"
	"github.com/dentora/dentora/internal/appointment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("appointment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
