package patient

import (
	"github.com/dentora/dentora/internal/patient/repository"
	"github.com/dentora/dentora/internal/patient/service"
	"go.uber.org/fx"
)

var Module = fx.Module("patient.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
