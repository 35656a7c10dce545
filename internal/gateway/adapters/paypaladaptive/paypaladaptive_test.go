package paypaladaptive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, apiBase, webscr string) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"receiver":  "merchant@example.com",
		"app_id":    "APP-80W284485P519543T",
		"username":  "api_user",
		"password":  "api_pass",
		"signature": "api_sig",
		"api_base":  apiBase,
		"webscr":    webscr,
	}})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func newIPNServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(body), "cmd=_notify-validate&"))
		_, _ = w.Write([]byte(answer))
	}))
}

func ipnPayload(invoiceID snowflake.ID, status string) []byte {
	values := url.Values{}
	values.Set("transaction_type", "Adaptive Payment PAY")
	values.Set("pay_key", "AP-3TY093934F645183W")
	values.Set("tracking_id", invoiceID.String())
	values.Set("status", status)
	values.Set("transaction[0].amount", "USD 100.00")
	return []byte(values.Encode())
}

func TestNewAdapterRequiresReceiver(t *testing.T) {
	_, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"app_id":    "APP-1",
		"username":  "u",
		"password":  "p",
		"signature": "s",
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestInitiateObtainsPayKey(t *testing.T) {
	invoiceID := snowflake.ID(88991122)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AdaptivePayments/Pay", r.URL.Path)
		assert.Equal(t, "api_user", r.Header.Get("X-PAYPAL-SECURITY-USERID"))
		assert.Equal(t, "APP-80W284485P519543T", r.Header.Get("X-PAYPAL-APPLICATION-ID"))

		var req payRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PAY", req.ActionType)
		assert.Equal(t, invoiceID.String(), req.TrackingID)
		require.Len(t, req.ReceiverList.Receiver, 1)
		assert.Equal(t, "100.00", req.ReceiverList.Receiver[0].Amount)
		assert.Equal(t, "merchant@example.com", req.ReceiverList.Receiver[0].Email)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"payKey":           "AP-3TY093934F645183W",
			"responseEnvelope": map[string]string{"ack": "Success"},
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, "https://webscr.example.com/cgi-bin/webscr")
	instruction, err := adapter.Initiate(context.Background(), domain.ChargeOrder{
		InvoiceID: invoiceID,
		Amount:    10000,
		Currency:  "usd",
		ReturnURL: "https://shop.example.com/return",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstructionRedirect, instruction.Kind)
	assert.Equal(t, "https://webscr.example.com/cgi-bin/webscr", instruction.URL)
	assert.Equal(t, "AP-3TY093934F645183W", instruction.Reference)

	fields := map[string]string{}
	for _, f := range instruction.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "_ap-payment", fields["cmd"])
	assert.Equal(t, "AP-3TY093934F645183W", fields["paykey"])
}

func TestInitiateRejectedWithoutPayKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responseEnvelope": map[string]string{"ack": "Failure"},
			"error":            []map[string]string{{"errorId": "580022", "message": "Invalid request parameter"}},
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, "https://webscr.example.com")
	_, err := adapter.Initiate(context.Background(), domain.ChargeOrder{Amount: 100, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestHandleCallbackCompletedPayment(t *testing.T) {
	server := newIPNServer(t, "VERIFIED")
	defer server.Close()

	invoiceID := snowflake.ID(445566)
	adapter := newTestAdapter(t, "http://unused.invalid", server.URL)

	txn, err := adapter.HandleCallback(context.Background(), ipnPayload(invoiceID, "COMPLETED"), nil)
	require.NoError(t, err)
	assert.Equal(t, "AP-3TY093934F645183W", txn.GatewayRef)
	assert.Equal(t, invoiceID, txn.InvoiceID)
	assert.Equal(t, domain.OutcomeSuccess, txn.Outcome)
	assert.Equal(t, int64(10000), txn.Amount)
	assert.Equal(t, "USD", txn.Currency)
}

func TestHandleCallbackStatusMapping(t *testing.T) {
	server := newIPNServer(t, "VERIFIED")
	defer server.Close()

	adapter := newTestAdapter(t, "http://unused.invalid", server.URL)
	cases := []struct {
		status  string
		outcome domain.Outcome
	}{
		{"PENDING", domain.OutcomePending},
		{"PROCESSING", domain.OutcomePending},
		{"ERROR", domain.OutcomeError},
		{"DENIED", domain.OutcomeDeclined},
		{"EXPIRED", domain.OutcomeDeclined},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			txn, err := adapter.HandleCallback(context.Background(), ipnPayload(snowflake.ID(1), tc.status), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, txn.Outcome)
		})
	}
}

func TestHandleCallbackInvalidPostback(t *testing.T) {
	server := newIPNServer(t, "INVALID")
	defer server.Close()

	adapter := newTestAdapter(t, "http://unused.invalid", server.URL)
	_, err := adapter.HandleCallback(context.Background(), ipnPayload(snowflake.ID(1), "COMPLETED"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestHandleCallbackIgnoresOtherTransactionTypes(t *testing.T) {
	server := newIPNServer(t, "VERIFIED")
	defer server.Close()

	adapter := newTestAdapter(t, "http://unused.invalid", server.URL)
	values := url.Values{}
	values.Set("transaction_type", "Adjustment")
	_, err := adapter.HandleCallback(context.Background(), []byte(values.Encode()), nil)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestParseCompositeAmount(t *testing.T) {
	currency, amount, err := parseCompositeAmount("EUR 49.90")
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)
	assert.Equal(t, int64(4990), amount)

	_, _, err = parseCompositeAmount("49.90")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
