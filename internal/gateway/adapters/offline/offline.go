// Package offline implements the manual settlement gateway: Initiate
// hands the payer the configured payment details and an operator later
// settles the invoice explicitly. There is no callback channel.
package offline

import (
	"context"
	"net/http"
	"strings"

	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "offline"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerID
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	details, _ := readString(cfg.Config, "payment_details")
	details = strings.TrimSpace(details)
	if details == "" {
		details = "Contact us to arrange payment."
	}
	return &Adapter{details: details}, nil
}

type Adapter struct {
	details string
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: ""}
}

func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	_, _ = ctx, order

	return &domain.PaymentInstruction{
		Kind:    domain.InstructionManual,
		Message: a.details,
	}, nil
}

func (a *Adapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*domain.Transaction, error) {
	_, _, _ = ctx, payload, headers
	return nil, domain.ErrEventIgnored
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	switch cast := value.(type) {
	case string:
		return cast, true
	default:
		return "", false
	}
}
