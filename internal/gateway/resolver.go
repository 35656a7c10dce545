// Package gateway resolves provider identifiers to configured adapters.
package gateway

import (
	"context"
	"strings"

	"github.com/responsiv/pay/internal/gateway/adapters"
	"github.com/responsiv/pay/internal/gateway/domain"
	configdomain "github.com/responsiv/pay/internal/gatewayconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Resolver builds adapters on demand from the encrypted provider
// configuration store. Adapters are cheap to construct, so there is no
// cache; a config change takes effect on the next resolve.
type Resolver struct {
	registry *adapters.Registry
	configs  configdomain.Service
	log      *zap.Logger
}

type ResolverParams struct {
	fx.In

	Registry *adapters.Registry
	Configs  configdomain.Service
	Log      *zap.Logger
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		registry: p.Registry,
		configs:  p.Configs,
		log:      p.Log.Named("gateway.resolver"),
	}
}

func (r *Resolver) Resolve(ctx context.Context, provider string) (domain.Adapter, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !r.registry.ProviderExists(provider) {
		return nil, domain.ErrProviderNotFound
	}

	cfg, err := r.configs.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}

	adapter, err := r.registry.NewAdapter(provider, domain.AdapterConfig{
		Provider: provider,
		Config:   cfg,
	})
	if err != nil {
		r.log.Warn("adapter construction failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return nil, err
	}
	return adapter, nil
}

// Providers lists every adapter the registry knows, configured or not.
func (r *Resolver) Providers() []string {
	return r.registry.Providers()
}
