package gateway

import (
	"github.com/responsiv/pay/internal/gateway/adapters"
	"github.com/responsiv/pay/internal/gateway/adapters/offline"
	"github.com/responsiv/pay/internal/gateway/adapters/paypaladaptive"
	"github.com/responsiv/pay/internal/gateway/adapters/paypalpro"
	"github.com/responsiv/pay/internal/gateway/adapters/paypalstandard"
	"github.com/responsiv/pay/internal/gateway/adapters/skrill"
	"github.com/responsiv/pay/internal/gateway/adapters/stripe"
	"go.uber.org/fx"
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		paypalstandard.NewFactory(),
		paypaladaptive.NewFactory(),
		paypalpro.NewFactory(),
		offline.NewFactory(),
		skrill.NewFactory(),
		stripe.NewFactory(),
	)
}

var Module = fx.Module("gateway",
	fx.Provide(
		newRegistry,
		NewResolver,
	),
)
