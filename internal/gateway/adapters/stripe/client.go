package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/responsiv/pay/internal/gateway/domain"
)

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stripeCustomer struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Sources struct {
		Data []stripeCard `json:"data"`
	} `json:"sources"`
}

type stripeCard struct {
	Last4    string `json:"last4"`
	Brand    string `json:"brand"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

type client struct {
	apiKey  string
	apiBase string
	http    *http.Client
}

func newClient(apiKey string, apiBase string) *client {
	return &client{
		apiKey:  strings.TrimSpace(apiKey),
		apiBase: strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		http:    &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *client) createPaymentIntent(ctx context.Context, values url.Values, idempotencyKey string) (stripePaymentIntent, error) {
	var intent stripePaymentIntent
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, idempotencyKey, &intent); err != nil {
		return stripePaymentIntent{}, err
	}
	if intent.ID == "" {
		return stripePaymentIntent{}, domain.ErrGatewayUnavailable
	}
	return intent, nil
}

func (c *client) createCustomer(ctx context.Context, values url.Values) (stripeCustomer, error) {
	var customer stripeCustomer
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, "", &customer); err != nil {
		return stripeCustomer{}, err
	}
	if customer.ID == "" {
		return stripeCustomer{}, domain.ErrGatewayUnavailable
	}
	return customer, nil
}

func (c *client) updateCustomer(ctx context.Context, customerID string, values url.Values) (stripeCustomer, error) {
	var customer stripeCustomer
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers/"+customerID, values, "", &customer); err != nil {
		return stripeCustomer{}, err
	}
	return customer, nil
}

func (c *client) deleteCustomer(ctx context.Context, customerID string) error {
	var customer stripeCustomer
	return c.doRequest(ctx, http.MethodDelete, "/v1/customers/"+customerID, nil, "", &customer)
}

func (c *client) createCharge(ctx context.Context, values url.Values, idempotencyKey string) (stripeCharge, error) {
	var charge stripeCharge
	if err := c.doRequest(ctx, http.MethodPost, "/v1/charges", values, idempotencyKey, &charge); err != nil {
		return stripeCharge{}, err
	}
	if charge.ID == "" {
		return stripeCharge{}, domain.ErrGatewayUnavailable
	}
	return charge, nil
}

func (c *client) createRefund(ctx context.Context, values url.Values, idempotencyKey string) (stripeRefund, error) {
	var refund stripeRefund
	if err := c.doRequest(ctx, http.MethodPost, "/v1/refunds", values, idempotencyKey, &refund); err != nil {
		return stripeRefund{}, err
	}
	if refund.ID == "" {
		return stripeRefund{}, domain.ErrGatewayUnavailable
	}
	return refund, nil
}

func (c *client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return domain.ErrInvalidConfig
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.ErrGatewayUnavailable
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return domain.ErrGatewayUnavailable
		}
		if stripeErr.Error.Type == "card_error" {
			return domain.ErrGatewayRejected
		}
		return fmt.Errorf("%w: %s", domain.ErrGatewayRejected, stripeErr.Error.Code)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
