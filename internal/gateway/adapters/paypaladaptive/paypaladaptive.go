// Package paypaladaptive implements PayPal Adaptive Payments: the Pay
// API call obtains a pay key, the payer is redirected to approve it,
// and the adaptive IPN reports the outcome.
package paypaladaptive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "paypal-adaptive"

const (
	liveAPIBase    = "https://svcs.paypal.com"
	sandboxAPIBase = "https://svcs.sandbox.paypal.com"

	liveWebscr    = "https://www.paypal.com/cgi-bin/webscr"
	sandboxWebscr = "https://www.sandbox.paypal.com/cgi-bin/webscr"
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
		"receiver":  &adapter.receiver,
		"app_id":    &adapter.appID,
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

	adapter.apiBase = liveAPIBase
	adapter.webscr = liveWebscr
	if readBool(cfg.Config, "sandbox") {
		adapter.apiBase = sandboxAPIBase
		adapter.webscr = sandboxWebscr
	}
	if override, ok := readString(cfg.Config, "api_base"); ok && strings.TrimSpace(override) != "" {
		adapter.apiBase = strings.TrimRight(strings.TrimSpace(override), "/")
	}
	if override, ok := readString(cfg.Config, "webscr"); ok && strings.TrimSpace(override) != "" {
		adapter.webscr = strings.TrimSpace(override)
	}

	return adapter, nil
}

type Adapter struct {
	receiver  string
	appID     string
	username  string
	password  string
	signature string
	apiBase   string
	webscr    string
	client    *http.Client
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: ""}
}

type payRequest struct {
	ActionType         string       `json:"actionType"`
	CurrencyCode       string       `json:"currencyCode"`
	ReceiverList       receiverList `json:"receiverList"`
	TrackingID         string       `json:"trackingId"`
	ReturnURL          string       `json:"returnUrl"`
	CancelURL          string       `json:"cancelUrl"`
	IPNNotificationURL string       `json:"ipnNotificationUrl"`
	Memo               string       `json:"memo,omitempty"`
	RequestEnvelope    envelope     `json:"requestEnvelope"`
}

type receiverList struct {
	Receiver []receiver `json:"receiver"`
}

type receiver struct {
	Amount string `json:"amount"`
	Email  string `json:"email"`
}

type envelope struct {
	ErrorLanguage string `json:"errorLanguage"`
}

type payResponse struct {
	PayKey           string `json:"payKey"`
	PaymentExecState string `json:"paymentExecStatus"`
	ResponseEnvelope struct {
		Ack string `json:"ack"`
	} `json:"responseEnvelope"`
	Error []struct {
		ErrorID string `json:"errorId"`
		Message string `json:"message"`
	} `json:"error"`
}

// Initiate calls the Pay API for a pay key and redirects the payer to
// webscr with cmd=_ap-payment. The invoice ID travels as trackingId.
func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	reqBody := payRequest{
		ActionType:   "PAY",
		CurrencyCode: strings.ToUpper(order.Currency),
		ReceiverList: receiverList{Receiver: []receiver{{
			Amount: domain.FormatAmount(order.Amount),
			Email:  a.receiver,
		}}},
		TrackingID:         order.InvoiceID.String(),
		ReturnURL:          order.ReturnURL,
		CancelURL:          order.CancelURL,
		IPNNotificationURL: order.NotifyURL,
		Memo:               order.Description,
		RequestEnvelope:    envelope{ErrorLanguage: "en_US"},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/AdaptivePayments/Pay", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PAYPAL-SECURITY-USERID", a.username)
	req.Header.Set("X-PAYPAL-SECURITY-PASSWORD", a.password)
	req.Header.Set("X-PAYPAL-SECURITY-SIGNATURE", a.signature)
	req.Header.Set("X-PAYPAL-APPLICATION-ID", a.appID)
	req.Header.Set("X-PAYPAL-REQUEST-DATA-FORMAT", "JSON")
	req.Header.Set("X-PAYPAL-RESPONSE-DATA-FORMAT", "JSON")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, domain.ErrGatewayUnavailable
	}

	var payResp payResponse
	if err := json.NewDecoder(resp.Body).Decode(&payResp); err != nil {
		return nil, domain.ErrGatewayUnavailable
	}
	ack := strings.ToLower(payResp.ResponseEnvelope.Ack)
	if ack != "success" && ack != "successwithwarning" {
		return nil, domain.ErrGatewayRejected
	}
	if strings.TrimSpace(payResp.PayKey) == "" {
		return nil, domain.ErrGatewayRejected
	}

	return &domain.PaymentInstruction{
		Kind:      domain.InstructionRedirect,
		URL:       a.webscr,
		Method:    http.MethodGet,
		Reference: payResp.PayKey,
		Fields: []domain.FormField{
			{Name: "cmd", Value: "_ap-payment"},
			{Name: "paykey", Value: payResp.PayKey},
		},
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

	if !strings.EqualFold(strings.TrimSpace(values.Get("transaction_type")), "Adaptive Payment PAY") {
		return nil, domain.ErrEventIgnored
	}

	payKey := strings.TrimSpace(values.Get("pay_key"))
	if payKey == "" {
		return nil, domain.ErrInvalidEvent
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(values.Get("tracking_id")))
	if err != nil {
		return nil, domain.ErrInvalidEvent
	}

	// transaction[0].amount has the form "USD 100.00".
	currency, amount, err := parseCompositeAmount(values.Get("transaction[0].amount"))
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	var outcome domain.Outcome
	switch strings.ToUpper(strings.TrimSpace(values.Get("status"))) {
	case "COMPLETED":
		outcome = domain.OutcomeSuccess
	case "INCOMPLETE", "PROCESSING", "PENDING", "CREATED":
		outcome = domain.OutcomePending
	case "ERROR":
		outcome = domain.OutcomeError
	case "REVERSALERROR", "DENIED", "EXPIRED", "CANCELED":
		outcome = domain.OutcomeDeclined
	default:
		return nil, domain.ErrEventIgnored
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: payKey,
		InvoiceID:  invoiceID,
		Kind:       domain.KindPayment,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: time.Now().UTC(),
		RawPayload: payload,
	}, nil
}

func (a *Adapter) validateIPN(ctx context.Context, payload []byte) error {
	body := "cmd=_notify-validate&" + string(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webscr, strings.NewReader(body))
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

func parseCompositeAmount(value string) (string, int64, error) {
	parts := strings.Fields(strings.TrimSpace(value))
	if len(parts) != 2 {
		return "", 0, domain.ErrInvalidAmount
	}
	amount, err := domain.ParseAmount(parts[1])
	if err != nil {
		return "", 0, err
	}
	return strings.ToUpper(parts[0]), amount, nil
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
