package invoice

import (
	"github.com/dentora/dentora/internal/invoice/repository"
	"github.com/dentora/dentora/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
