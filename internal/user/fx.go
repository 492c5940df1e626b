package user

import (
	"github.com/dentora/dentora/internal/user/repository"
	"github.com/dentora/dentora/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
