package domain

import "errors"

var (
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrNotFound               = errors.New("invoice_not_found")
	ErrInvalidInvoiceID       = errors.New("invalid_invoice_id")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrInvalidCurrency        = errors.New("invalid_currency")
	ErrNoItems                = errors.New("no_items")
	ErrInvalidItem            = errors.New("invalid_item")
	ErrInvalidRefundAmount    = errors.New("invalid_refund_amount")
	ErrNotPaid                = errors.New("invoice_not_paid")
)
