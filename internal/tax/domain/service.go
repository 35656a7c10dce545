package domain

import "context"

// Resolver yields the tax class for an invoice item. A nil result
// means no tax applies.
type Resolver interface {
	ResolveClass(ctx context.Context, code string) (*TaxClass, error)
}

type CreateRequest struct {
	Name        string
	Code        string
	TaxMode     TaxMode
	Rate        *float64
	Description *string
}

type UpdateRequest struct {
	ID          string
	Name        string
	TaxMode     TaxMode
	Rate        *float64
	Description *string
	IsEnabled   *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*TaxClass, error)
	Update(ctx context.Context, req UpdateRequest) (*TaxClass, error)
	List(ctx context.Context, filter ListFilter) ([]TaxClass, error)
}
