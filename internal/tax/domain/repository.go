package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	Code      string
	IsEnabled *bool
}

type Repository interface {
	Create(ctx context.Context, class *TaxClass) error
	FindByCode(ctx context.Context, code string) (*TaxClass, error)
	FindByID(ctx context.Context, id snowflake.ID) (*TaxClass, error)
	List(ctx context.Context, filter ListFilter) ([]TaxClass, error)
	Update(ctx context.Context, class *TaxClass) error
}
