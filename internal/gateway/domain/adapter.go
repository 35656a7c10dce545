package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

// Adapter is the uniform capability surface of a payment provider. The
// orchestrator never branches on provider identity; everything
// provider-specific (request signing, endpoint selection, response
// schemas) stays behind this interface.
type Adapter interface {
	Provider() string

	// Initiate begins a payment for the order. Redirect providers
	// return a redirect instruction, direct providers a charge handle.
	Initiate(ctx context.Context, order ChargeOrder) (*PaymentInstruction, error)

	// HandleCallback verifies an asynchronous notification and yields
	// the canonical transaction. ErrInvalidSignature means the caller
	// must not apply the transaction.
	HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*Transaction, error)

	// CallbackAck is the acknowledgement the provider protocol expects
	// once a callback has been accepted.
	CallbackAck() Ack
}

// ProfileGateway is implemented by adapters that support stored,
// tokenized payment methods.
type ProfileGateway interface {
	// CreateProfile tokenizes a payment method for the customer.
	CreateProfile(ctx context.Context, customer CustomerRef, data PaymentData) (*ProfileToken, error)

	// UpdateProfile replaces the stored token. ok=false without error
	// is a gateway-side soft rejection; transport failures surface as
	// ErrGatewayUnavailable.
	UpdateProfile(ctx context.Context, customer CustomerRef, current ProfileToken, data PaymentData) (token *ProfileToken, ok bool, err error)

	// DeleteProfile removes the remote token, best effort.
	DeleteProfile(ctx context.Context, customer CustomerRef, current ProfileToken) (bool, error)

	// ChargeProfile performs a direct off-session charge.
	ChargeProfile(ctx context.Context, token ProfileToken, amount int64, currency string, invoiceID snowflake.ID) (*Transaction, error)
}

// RefundGateway is implemented by adapters that can push refunds to
// the provider. Providers without it settle refunds out of band and
// only report them through callbacks.
type RefundGateway interface {
	Refund(ctx context.Context, paymentRef string, amount int64, currency string, invoiceID snowflake.ID) (*Transaction, error)
}

// AdapterConfig carries the decrypted provider configuration.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

// AdapterFactory builds adapters for one provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (Adapter, error)
}
