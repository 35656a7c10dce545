package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/pkg/db/pagination"
)

type ItemInput struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	TaxClass    string `json:"tax_class,omitempty"`
}

type CreateInvoiceRequest struct {
	CustomerID string      `json:"customer_id"`
	Currency   string      `json:"currency"`
	Items      []ItemInput `json:"items"`
}

type ListInvoiceRequest struct {
	PageToken   string
	PageSize    int32
	Status      InvoiceStatus
	CustomerID  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// InvoiceDetail bundles an invoice with its lines and transactions.
type InvoiceDetail struct {
	Invoice      Invoice              `json:"invoice"`
	Items        []InvoiceItem        `json:"items"`
	Transactions []GatewayTransaction `json:"transactions,omitempty"`
}

// ApplyResult reports what happened when a gateway transaction was
// applied against an invoice.
type ApplyResult struct {
	Invoice Invoice
	// Applied is false when the transaction was a replay of an
	// already-recorded gateway reference.
	Applied bool
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceDetail, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	// BeginPayment moves a draft invoice to pending and records the
	// initiating transaction. Pending invoices may re-initiate with
	// the same provider.
	BeginPayment(ctx context.Context, invoiceID snowflake.ID, provider string, txn GatewayTransaction) (Invoice, error)

	// ApplyTransaction records a verified gateway transaction and
	// advances the invoice state machine. A replayed gateway_ref is
	// recorded exactly once; the replay returns Applied=false with
	// the invoice untouched.
	ApplyTransaction(ctx context.Context, txn GatewayTransaction) (ApplyResult, error)

	// Cancel moves a draft or pending invoice to cancelled.
	Cancel(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
}
