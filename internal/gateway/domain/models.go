// Package domain defines the gateway adapter contract and the canonical
// transaction vocabulary every provider normalizes to. Nothing
// provider-specific crosses this boundary.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Outcome is the shared outcome vocabulary for gateway transactions.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeDeclined Outcome = "DECLINED"
	OutcomeError    Outcome = "ERROR"
	OutcomePending  Outcome = "PENDING"
)

// TransactionKind distinguishes charges from refunds.
type TransactionKind string

const (
	KindPayment TransactionKind = "payment"
	KindRefund  TransactionKind = "refund"
)

// Transaction is the canonical transaction parsed by adapters from a
// callback or returned by a direct charge.
type Transaction struct {
	Provider   string
	GatewayRef string
	InvoiceID  snowflake.ID
	ProfileID  *snowflake.ID
	Kind       TransactionKind
	Outcome    Outcome
	Amount     int64
	Currency   string
	OccurredAt time.Time
	RawPayload []byte
}

// ChargeOrder carries everything an adapter needs to begin a payment.
// The invoice ID doubles as the correlation identifier embedded in the
// provider payload and recovered from callbacks.
type ChargeOrder struct {
	InvoiceID   snowflake.ID
	CustomerID  snowflake.ID
	Amount      int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// InstructionKind tells the caller how to continue the payment.
type InstructionKind string

const (
	// InstructionRedirect: render an auto-submitting form or redirect.
	InstructionRedirect InstructionKind = "redirect"
	// InstructionDirectCharge: complete the charge client-side with the
	// returned secret (e.g. a Stripe payment intent).
	InstructionDirectCharge InstructionKind = "direct_charge"
	// InstructionManual: show the payment details text and wait for an
	// operator to settle the invoice.
	InstructionManual InstructionKind = "manual"
)

// FormField preserves field ordering for redirect forms.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PaymentInstruction is the result of Adapter.Initiate.
type PaymentInstruction struct {
	Kind         InstructionKind `json:"kind"`
	URL          string          `json:"url,omitempty"`
	Method       string          `json:"method,omitempty"` // GET or POST
	Fields       []FormField     `json:"fields,omitempty"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// CustomerRef identifies the owning customer on profile operations.
type CustomerRef struct {
	ID    snowflake.ID
	Email string
	Name  string
}

// PaymentData is the client-supplied payment method input. Tokenizing
// providers receive Token; direct-card providers use the card fields.
// Raw card data is never persisted.
type PaymentData struct {
	Token      string
	CardNumber string
	CVV        string
	ExpMonth   int
	ExpYear    int
	HolderName string
}

// ProfileToken is the gateway-issued stored payment method handle plus
// display metadata. The token is opaque and write-once: updates produce
// a whole new ProfileToken, never a partial mutation.
type ProfileToken struct {
	Token     string
	MaskedPAN string
	Brand     string
	ExpMonth  int
	ExpYear   int
}

// Ack is the exact acknowledgement a provider protocol expects after a
// callback is accepted.
type Ack struct {
	Status      int
	ContentType string
	Body        string
}
