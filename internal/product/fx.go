package product

import (
	"github.com/dentora/dentora/internal/product/repository"
	"github.com/dentora/dentora/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
