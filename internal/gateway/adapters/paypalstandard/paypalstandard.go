// Package paypalstandard implements the classic PayPal checkout:
// redirect to webscr, asynchronous IPN callback verified by posting the
// payload back with cmd=_notify-validate.
package paypalstandard

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "paypal-standard"

const (
	liveEndpoint    = "https://www.paypal.com/cgi-bin/webscr"
	sandboxEndpoint = "https://www.sandbox.paypal.com/cgi-bin/webscr"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerID
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	business, ok := readString(cfg.Config, "business")
	if !ok || strings.TrimSpace(business) == "" {
		return nil, domain.ErrInvalidConfig
	}

	endpoint := liveEndpoint
	if readBool(cfg.Config, "sandbox") {
		endpoint = sandboxEndpoint
	}
	if override, ok := readString(cfg.Config, "endpoint"); ok && strings.TrimSpace(override) != "" {
		endpoint = strings.TrimSpace(override)
	}

	return &Adapter{
		business: strings.TrimSpace(business),
		endpoint: endpoint,
		client:   &http.Client{Timeout: 12 * time.Second},
	}, nil
}

type Adapter struct {
	business string
	endpoint string
	client   *http.Client
}

func (a *Adapter) Provider() string { return providerID }

// CallbackAck: PayPal IPN expects a plain 200 with an empty body once
// the notification has been verified.
func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: ""}
}

// Initiate builds the auto-submitting checkout form. The invoice ID
// rides in both the invoice and custom fields so IPN can correlate.
func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	_ = ctx

	fields := []domain.FormField{
		{Name: "cmd", Value: "_xclick"},
		{Name: "business", Value: a.business},
		{Name: "item_name", Value: order.Description},
		{Name: "invoice", Value: order.InvoiceID.String()},
		{Name: "custom", Value: order.InvoiceID.String()},
		{Name: "amount", Value: domain.FormatAmount(order.Amount)},
		{Name: "currency_code", Value: strings.ToUpper(order.Currency)},
		{Name: "no_shipping", Value: "1"},
		{Name: "charset", Value: "utf-8"},
		{Name: "return", Value: order.ReturnURL},
		{Name: "cancel_return", Value: order.CancelURL},
		{Name: "notify_url", Value: order.NotifyURL},
	}

	return &domain.PaymentInstruction{
		Kind:   domain.InstructionRedirect,
		URL:    a.endpoint,
		Method: http.MethodPost,
		Fields: fields,
	}, nil
}

func (a *Adapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*domain.Transaction, error) {
	_ = headers

	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	if err := a.validateIPN(ctx, payload); err != nil {
		return nil, err
	}

	receiver := strings.ToLower(strings.TrimSpace(values.Get("receiver_email")))
	if receiver != "" && receiver != strings.ToLower(a.business) {
		return nil, domain.ErrInvalidSignature
	}

	txnID := strings.TrimSpace(values.Get("txn_id"))
	if txnID == "" {
		return nil, domain.ErrInvalidEvent
	}

	invoiceRaw := strings.TrimSpace(values.Get("invoice"))
	if invoiceRaw == "" {
		invoiceRaw = strings.TrimSpace(values.Get("custom"))
	}
	invoiceID, err := snowflake.ParseString(invoiceRaw)
	if err != nil {
		return nil, domain.ErrInvalidEvent
	}

	amount, err := domain.ParseAmount(values.Get("mc_gross"))
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	kind := domain.KindPayment
	var outcome domain.Outcome
	switch strings.TrimSpace(values.Get("payment_status")) {
	case "Completed":
		outcome = domain.OutcomeSuccess
	case "Pending":
		outcome = domain.OutcomePending
	case "Denied", "Failed", "Expired", "Voided":
		outcome = domain.OutcomeDeclined
	case "Refunded", "Reversed":
		kind = domain.KindRefund
		outcome = domain.OutcomeSuccess
		if amount < 0 {
			amount = -amount
		}
	default:
		return nil, domain.ErrEventIgnored
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: txnID,
		InvoiceID:  invoiceID,
		Kind:       kind,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(values.Get("mc_currency"))),
		OccurredAt: time.Now().UTC(),
		RawPayload: payload,
	}, nil
}

// validateIPN posts the raw notification back to PayPal prefixed with
// cmd=_notify-validate; only a VERIFIED response is authentic.
func (a *Adapter) validateIPN(ctx context.Context, payload []byte) error {
	body := "cmd=_notify-validate&" + string(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ErrGatewayUnavailable
	}
	answer, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return domain.ErrGatewayUnavailable
	}
	if strings.TrimSpace(string(answer)) != "VERIFIED" {
		return domain.ErrInvalidSignature
	}
	return nil
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

func readBool(config map[string]any, key string) bool {
	value, ok := config[key]
	if !ok {
		return false
	}
	switch cast := value.(type) {
	case bool:
		return cast
	case string:
		return strings.EqualFold(strings.TrimSpace(cast), "true")
	default:
		return false
	}
}
