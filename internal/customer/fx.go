package customer

import (
	"github.com/responsiv/pay/internal/customer/repository"
	"github.com/responsiv/pay/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
