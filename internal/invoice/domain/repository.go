package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	Status      InvoiceStatus
	CustomerID  snowflake.ID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItem(ctx context.Context, db *gorm.DB, item *InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	UpdateState(ctx context.Context, tx *gorm.DB, invoice *Invoice) error

	// InsertTransaction records a gateway transaction. It returns
	// false without error when the (provider, gateway_ref) pair was
	// already recorded.
	InsertTransaction(ctx context.Context, tx *gorm.DB, txn *GatewayTransaction) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]GatewayTransaction, error)
}
