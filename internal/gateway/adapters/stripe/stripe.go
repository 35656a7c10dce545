package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

const providerID = "stripe"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerID
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	webhookSecret, ok := readString(cfg.Config, "webhook_secret")
	if !ok || strings.TrimSpace(webhookSecret) == "" {
		return nil, domain.ErrInvalidConfig
	}
	secretKey, ok := readString(cfg.Config, "secret_key")
	if !ok || strings.TrimSpace(secretKey) == "" {
		return nil, domain.ErrInvalidConfig
	}

	apiBase, _ := readString(cfg.Config, "api_base")
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.stripe.com"
	}

	return &Adapter{
		webhookSecret: strings.TrimSpace(webhookSecret),
		client:        newClient(secretKey, apiBase),
	}, nil
}

type Adapter struct {
	webhookSecret string
	client        *client
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) CallbackAck() domain.Ack {
	return domain.Ack{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        `{"received":true}`,
	}
}

// Initiate creates a payment intent carrying the invoice ID in its
// metadata so the webhook can correlate the outcome back.
func (a *Adapter) Initiate(ctx context.Context, order domain.ChargeOrder) (*domain.PaymentInstruction, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(order.Amount, 10))
	values.Set("currency", strings.ToLower(order.Currency))
	values.Set("automatic_payment_methods[enabled]", "false")
	values.Set("payment_method_types[]", "card")
	values.Set("description", order.Description)
	values.Set("metadata[invoice_id]", order.InvoiceID.String())
	values.Set("metadata[customer_id]", order.CustomerID.String())

	intent, err := a.client.createPaymentIntent(ctx, values, "invoice:"+order.InvoiceID.String())
	if err != nil {
		return nil, err
	}

	return &domain.PaymentInstruction{
		Kind:         domain.InstructionDirectCharge,
		ClientSecret: intent.ClientSecret,
		Reference:    intent.ID,
	}, nil
}

// Refund pushes a refund against the original payment intent.
func (a *Adapter) Refund(ctx context.Context, paymentRef string, amount int64, currency string, invoiceID snowflake.ID) (*domain.Transaction, error) {
	values := url.Values{}
	values.Set("payment_intent", paymentRef)
	values.Set("amount", strconv.FormatInt(amount, 10))
	values.Set("metadata[invoice_id]", invoiceID.String())

	refund, err := a.client.createRefund(ctx, values, fmt.Sprintf("refund:%s:%d", invoiceID.String(), amount))
	if err != nil {
		return nil, err
	}

	outcome := domain.OutcomeSuccess
	if refund.Status == "failed" || refund.Status == "canceled" {
		outcome = domain.OutcomeDeclined
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: refund.ID,
		InvoiceID:  invoiceID,
		Kind:       domain.KindRefund,
		Outcome:    outcome,
		Amount:     refund.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(currency)),
		OccurredAt: timestamp(refund.Created, 0),
	}, nil
}

func (a *Adapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*domain.Transaction, error) {
	if err := a.verify(payload, headers); err != nil {
		return nil, err
	}
	return a.parse(ctx, payload)
}

func (a *Adapter) verify(payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) parse(ctx context.Context, payload []byte) (*domain.Transaction, error) {
	_ = ctx

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return a.parsePaymentIntent(event, payload, domain.OutcomeSuccess)
	case "payment_intent.payment_failed":
		return a.parsePaymentIntent(event, payload, domain.OutcomeDeclined)
	case "charge.refunded":
		return a.parseRefund(event, payload)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID             string         `json:"id"`
	ClientSecret   string         `json:"client_secret"`
	Status         string         `json:"status"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Metadata       map[string]any `json:"metadata"`
}

type stripeRefund struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Created  int64  `json:"created"`
}

type stripeCharge struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Amount         int64          `json:"amount"`
	AmountRefunded int64          `json:"amount_refunded"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Metadata       map[string]any `json:"metadata"`
}

func (a *Adapter) parsePaymentIntent(event stripeEvent, payload []byte, outcome domain.Outcome) (*domain.Transaction, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	invoiceID, err := parseInvoiceID(intent.Metadata)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: intent.ID,
		InvoiceID:  invoiceID,
		Kind:       domain.KindPayment,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt: timestamp(intent.Created, event.Created),
		RawPayload: payload,
	}, nil
}

func (a *Adapter) parseRefund(event stripeEvent, payload []byte) (*domain.Transaction, error) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	amount := charge.AmountRefunded
	if amount <= 0 {
		amount = charge.Amount
	}
	invoiceID, err := parseInvoiceID(charge.Metadata)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: event.ID,
		InvoiceID:  invoiceID,
		Kind:       domain.KindRefund,
		Outcome:    domain.OutcomeSuccess,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(charge.Currency)),
		OccurredAt: timestamp(charge.Created, event.Created),
		RawPayload: payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseInvoiceID(metadata map[string]any) (snowflake.ID, error) {
	raw := readMetadataValue(metadata, "invoice_id")
	if raw == "" {
		return 0, domain.ErrInvalidEvent
	}
	invoiceID, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidEvent
	}
	return invoiceID, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
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
