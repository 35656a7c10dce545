package service

import (
	"context"
	"math"
	"strings"

	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"go.uber.org/fx"
)

type resolverParam struct {
	fx.In

	Repository taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p resolverParam) taxdomain.Resolver {
	return &resolver{repo: p.Repository}
}

func (r *resolver) ResolveClass(ctx context.Context, code string) (*taxdomain.TaxClass, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == taxdomain.TaxCodeNone {
		return nil, nil
	}

	class, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if class == nil || !class.IsEnabled || class.Rate == nil || *class.Rate <= 0 {
		return nil, nil
	}
	return class, nil
}

// ComputeTaxExclusive calculates tax added on top of the amount.
// Rounding happens only here to keep stored values integer-safe.
func ComputeTaxExclusive(amount int64, rate *float64) int64 {
	if amount <= 0 || rate == nil || *rate <= 0 {
		return 0
	}

	tax := float64(amount) * (*rate)
	result := int64(math.Round(tax))
	if result < 0 {
		return 0
	}
	return result
}

// ComputeTaxInclusive calculates the tax portion included in the amount.
func ComputeTaxInclusive(amount int64, rate *float64) int64 {
	if amount <= 0 || rate == nil || *rate <= 0 {
		return 0
	}

	tax := float64(amount) * (*rate / (1 + *rate))
	result := int64(math.Round(tax))
	if result < 0 {
		return 0
	}
	return result
}
