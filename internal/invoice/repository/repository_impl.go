package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/invoice/domain"
	"github.com/responsiv/pay/pkg/db/option"
	"github.com/responsiv/pay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, customer_id, status, provider, currency,
			subtotal_amount, tax_amount, total_amount, refunded_amount,
			issued_at, paid_at, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.CustomerID,
		invoice.Status,
		invoice.Provider,
		invoice.Currency,
		invoice.SubtotalAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.RefundedAmount,
		invoice.IssuedAt,
		invoice.PaidAt,
		invoice.Metadata,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.InvoiceItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_items (
			id, invoice_id, description, quantity, unit_amount, amount,
			tax_class, tax_amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.InvoiceID,
		item.Description,
		item.Quantity,
		item.UnitAmount,
		item.Amount,
		item.TaxClass,
		item.TaxAmount,
		item.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, status, provider, currency,
		        subtotal_amount, tax_amount, total_amount, refunded_amount,
		        issued_at, paid_at, metadata, created_at, updated_at
		 FROM invoices
		 WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	query := `SELECT id, customer_id, status, provider, currency,
	                 subtotal_amount, tax_amount, total_amount, refunded_amount,
	                 issued_at, paid_at, metadata, created_at, updated_at
	          FROM invoices
	          WHERE id = ?`
	// sqlite has no row locks; the in-process keyed mutex covers it.
	if tx.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var invoice domain.Invoice
	err := tx.WithContext(ctx).Raw(query, id).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, quantity, unit_amount, amount,
		        tax_class, tax_amount, created_at
		 FROM invoice_items
		 WHERE invoice_id = ?
		 ORDER BY id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateState(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, provider = ?, refunded_amount = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.Status,
		invoice.Provider,
		invoice.RefundedAmount,
		invoice.PaidAt,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, tx *gorm.DB, txn *domain.GatewayTransaction) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO gateway_transactions (
			id, invoice_id, profile_id, provider, gateway_ref,
			kind, outcome, amount, currency, raw_payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, gateway_ref) DO NOTHING`,
		txn.ID,
		txn.InvoiceID,
		txn.ProfileID,
		txn.Provider,
		txn.GatewayRef,
		txn.Kind,
		txn.Outcome,
		txn.Amount,
		txn.Currency,
		txn.RawPayload,
		txn.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.GatewayTransaction, error) {
	var txns []domain.GatewayTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, profile_id, provider, gateway_ref,
		        kind, outcome, amount, currency, raw_payload, created_at
		 FROM gateway_transactions
		 WHERE invoice_id = ?
		 ORDER BY id ASC`,
		invoiceID,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
