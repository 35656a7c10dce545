package gatewayconfig

import (
	"github.com/responsiv/pay/internal/gatewayconfig/repository"
	"github.com/responsiv/pay/internal/gatewayconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gatewayconfig",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
