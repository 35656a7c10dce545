// Package paypalpro implements PayPal Payments Pro over the classic
// NVP API. Charges are synchronous (DoDirectPayment); stored profiles
// use reference transactions, so the profile token is the transaction
// ID of a card authorization.
package paypalpro

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "paypal-pro"

const (
	liveEndpoint    = "https://api-3t.paypal.com/nvp"
	sandboxEndpoint = "https://api-3t.sandbox.paypal.com/nvp"

	nvpVersion = "204.0"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerID
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	adapter := &Adapter{client: &http.Client{Timeout: 12 * time.Second}}

	for key, target := range map[string]*string{
		"username":  &adapter.username,
		"password":  &adapter.password,
		"signature": &adapter.signature,
	} {
		value, ok := readString(cfg.Config, key)
		if !ok || strings.TrimSpace(value) == "" {
			return nil, domain.ErrInvalidConfig
		}
		*target = strings.TrimSpace(value)
	}

	adapter.endpoint = liveEndpoint
	if readBool(cfg.Config, "sandbox") {
		adapter.endpoint = sandboxEndpoint
	}
	if override, ok := readString(cfg.Config, "endpoint"); ok && strings.TrimSpace(override) != "" {
		adapter.endpoint = strings.TrimSpace(override)
	}

	return adapter, nil
}

type Adapter struct {
	username  string
	password  string
	signature string
	endpoint  string
	client    *http.Client
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: ""}
}

// Initiate: Pro charges on-site, so the caller collects card data and
// completes through the profile charge path. The instruction lists the
// fields the payment form must submit.
func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	_ = ctx

	return &domain.PaymentInstruction{
		Kind:      domain.InstructionDirectCharge,
		Reference: order.InvoiceID.String(),
		Fields: []domain.FormField{
			{Name: "card_number"},
			{Name: "cvv"},
			{Name: "exp_month"},
			{Name: "exp_year"},
			{Name: "holder_name"},
		},
	}, nil
}

// HandleCallback: Pro has no asynchronous notification channel.
func (a *Adapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*domain.Transaction, error) {
	_, _, _ = ctx, payload, headers
	return nil, domain.ErrEventIgnored
}

func (a *Adapter) call(ctx context.Context, method string, params url.Values) (url.Values, error) {
	form := url.Values{}
	form.Set("METHOD", method)
	form.Set("VERSION", nvpVersion)
	form.Set("USER", a.username)
	form.Set("PWD", a.password)
	form.Set("SIGNATURE", a.signature)
	for key, values := range params {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrGatewayUnavailable
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.ErrGatewayUnavailable
	}

	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, domain.ErrGatewayUnavailable
	}
	return parsed, nil
}

func ackSuccess(response url.Values) bool {
	ack := strings.ToLower(strings.TrimSpace(response.Get("ACK")))
	return ack == "success" || ack == "successwithwarning"
}

func cardParams(data domain.PaymentData) url.Values {
	params := url.Values{}
	params.Set("ACCT", strings.ReplaceAll(data.CardNumber, " ", ""))
	params.Set("CVV2", data.CVV)
	params.Set("EXPDATE", expDate(data.ExpMonth, data.ExpYear))
	if data.HolderName != "" {
		names := strings.SplitN(data.HolderName, " ", 2)
		params.Set("FIRSTNAME", names[0])
		if len(names) > 1 {
			params.Set("LASTNAME", names[1])
		}
	}
	return params
}

func expDate(month, year int) string {
	return two(month) + strconv.Itoa(year)
}

func two(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func maskPAN(cardNumber string) string {
	digits := strings.ReplaceAll(cardNumber, " ", "")
	if len(digits) < 4 {
		return ""
	}
	return "**** **** **** " + digits[len(digits)-4:]
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
