package invoice

import (
	"github.com/responsiv/pay/internal/invoice/repository"
	"github.com/responsiv/pay/internal/invoice/service"
	"github.com/responsiv/pay/internal/tax"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	tax.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
