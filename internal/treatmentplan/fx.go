package treatmentplan

import (
	"github.com/dentora/dentora/internal/treatmentplan/repository"
	"github.com/dentora/dentora/internal/treatmentplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treatmentplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
