// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft             InvoiceStatus = "DRAFT"
	InvoiceStatusPending           InvoiceStatus = "PENDING"
	InvoiceStatusPaid              InvoiceStatus = "PAID"
	InvoiceStatusPartiallyRefunded InvoiceStatus = "PARTIALLY_REFUNDED"
	InvoiceStatusRefunded          InvoiceStatus = "REFUNDED"
	InvoiceStatusCancelled         InvoiceStatus = "CANCELLED"
	InvoiceStatusFailed            InvoiceStatus = "FAILED"
)

// Invoice represents a payable invoice. Subtotal, tax and total are
// recomputed from the items on every write; the stored columns exist
// for querying and display only.
type Invoice struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	Status     InvoiceStatus `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	// Provider is set on initiate and records which gateway the
	// invoice was sent through.
	Provider       string            `gorm:"type:text" json:"provider,omitempty"`
	Currency       string            `gorm:"type:text;not null" json:"currency"`
	SubtotalAmount int64             `gorm:"not null;default:0" json:"subtotal_amount"`
	TaxAmount      int64             `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64             `gorm:"not null;default:0" json:"total_amount"`
	RefundedAmount int64             `gorm:"not null;default:0" json:"refunded_amount"`
	IssuedAt       *time.Time        `gorm:"" json:"issued_at,omitempty"`
	PaidAt         *time.Time        `gorm:"" json:"paid_at,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description string       `gorm:"type:text" json:"description"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	UnitAmount  int64        `gorm:"not null" json:"unit_amount"`
	Amount      int64        `gorm:"not null" json:"amount"`
	TaxClass    string       `gorm:"type:text" json:"tax_class,omitempty"`
	TaxAmount   int64        `gorm:"not null;default:0" json:"tax_amount"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// GatewayTransaction is the audit record of one gateway event applied
// (or replayed) against an invoice. The (provider, gateway_ref) pair
// is unique; replays hit the constraint and become no-ops.
type GatewayTransaction struct {
	ID         snowflake.ID                  `gorm:"primaryKey" json:"id"`
	InvoiceID  snowflake.ID                  `gorm:"not null;index" json:"invoice_id"`
	ProfileID  *snowflake.ID                 `gorm:"index" json:"profile_id,omitempty"`
	Provider   string                        `gorm:"type:text;not null;uniqueIndex:ux_gateway_transactions_ref" json:"provider"`
	GatewayRef string                        `gorm:"type:text;not null;uniqueIndex:ux_gateway_transactions_ref" json:"gateway_ref"`
	Kind       gatewaydomain.TransactionKind `gorm:"type:text;not null" json:"kind"`
	Outcome    gatewaydomain.Outcome         `gorm:"type:text;not null" json:"outcome"`
	Amount     int64                         `gorm:"not null" json:"amount"`
	Currency   string                        `gorm:"type:text;not null" json:"currency"`
	RawPayload datatypes.JSON                `gorm:"type:jsonb" json:"-"`
	CreatedAt  time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (GatewayTransaction) TableName() string { return "gateway_transactions" }
