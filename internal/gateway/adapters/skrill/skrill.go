// Package skrill implements the Skrill (Moneybookers) hosted checkout:
// redirect to pay.skrill.com, status_url callback authenticated with an
// md5sig over the merchant secret word.
package skrill

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "skrill"

const payEndpoint = "https://pay.skrill.com"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerID
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	email, ok := readString(cfg.Config, "merchant_email")
	if !ok || strings.TrimSpace(email) == "" {
		return nil, domain.ErrInvalidConfig
	}
	secretWord, ok := readString(cfg.Config, "secret_word")
	if !ok || strings.TrimSpace(secretWord) == "" {
		return nil, domain.ErrInvalidConfig
	}

	endpoint := payEndpoint
	if override, ok := readString(cfg.Config, "endpoint"); ok && strings.TrimSpace(override) != "" {
		endpoint = strings.TrimSpace(override)
	}

	return &Adapter{
		merchantEmail: strings.TrimSpace(email),
		secretWord:    strings.TrimSpace(secretWord),
		endpoint:      endpoint,
	}, nil
}

type Adapter struct {
	merchantEmail string
	secretWord    string
	endpoint      string
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: ""}
}

func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	_ = ctx

	fields := []domain.FormField{
		{Name: "pay_to_email", Value: a.merchantEmail},
		{Name: "transaction_id", Value: order.InvoiceID.String()},
		{Name: "return_url", Value: order.ReturnURL},
		{Name: "cancel_url", Value: order.CancelURL},
		{Name: "status_url", Value: order.NotifyURL},
		{Name: "language", Value: "EN"},
		{Name: "amount", Value: domain.FormatAmount(order.Amount)},
		{Name: "currency", Value: strings.ToUpper(order.Currency)},
		{Name: "detail1_description", Value: "Invoice"},
		{Name: "detail1_text", Value: order.Description},
	}

	return &domain.PaymentInstruction{
		Kind:   domain.InstructionRedirect,
		URL:    a.endpoint,
		Method: http.MethodPost,
		Fields: fields,
	}, nil
}

// Skrill status codes on the status_url callback.
const (
	statusProcessed  = "2"
	statusPending    = "0"
	statusCancelled  = "-1"
	statusFailed     = "-2"
	statusChargeback = "-3"
)

func (a *Adapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*domain.Transaction, error) {
	_, _ = ctx, headers

	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	if !a.verifySignature(values) {
		return nil, domain.ErrInvalidSignature
	}

	gatewayRef := strings.TrimSpace(values.Get("mb_transaction_id"))
	if gatewayRef == "" {
		return nil, domain.ErrInvalidEvent
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(values.Get("transaction_id")))
	if err != nil {
		return nil, domain.ErrInvalidEvent
	}
	amount, err := domain.ParseAmount(values.Get("mb_amount"))
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	kind := domain.KindPayment
	var outcome domain.Outcome
	switch strings.TrimSpace(values.Get("status")) {
	case statusProcessed:
		outcome = domain.OutcomeSuccess
	case statusPending:
		outcome = domain.OutcomePending
	case statusCancelled, statusFailed:
		outcome = domain.OutcomeDeclined
	case statusChargeback:
		kind = domain.KindRefund
		outcome = domain.OutcomeSuccess
	default:
		return nil, domain.ErrEventIgnored
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: gatewayRef,
		InvoiceID:  invoiceID,
		Kind:       kind,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(values.Get("mb_currency"))),
		OccurredAt: time.Now().UTC(),
		RawPayload: payload,
	}, nil
}

// verifySignature checks md5sig = UPPER(MD5(merchant_id + transaction_id +
// UPPER(MD5(secret_word)) + mb_amount + mb_currency + status)).
func (a *Adapter) verifySignature(values url.Values) bool {
	provided := strings.ToUpper(strings.TrimSpace(values.Get("md5sig")))
	if provided == "" {
		return false
	}

	secretSum := md5.Sum([]byte(a.secretWord))
	secretHex := strings.ToUpper(hex.EncodeToString(secretSum[:]))

	signed := values.Get("merchant_id") +
		values.Get("transaction_id") +
		secretHex +
		values.Get("mb_amount") +
		values.Get("mb_currency") +
		values.Get("status")

	expectedSum := md5.Sum([]byte(signed))
	expected := strings.ToUpper(hex.EncodeToString(expectedSum[:]))

	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
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
