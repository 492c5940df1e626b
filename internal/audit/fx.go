package audit

import (
	"github.com/dentora/dentora/internal/audit/repository"
	"github.com/dentora/dentora/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
