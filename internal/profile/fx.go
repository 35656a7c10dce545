package profile

import (
	"github.com/responsiv/pay/internal/profile/repository"
	"github.com/responsiv/pay/internal/profile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
