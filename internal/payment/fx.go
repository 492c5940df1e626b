package payment

import (
	"github.com/dentora/dentora/internal/payment/repository"
	"github.com/dentora/dentora/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
