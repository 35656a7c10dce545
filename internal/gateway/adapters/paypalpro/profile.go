package paypalpro

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

// CreateProfile authorizes the card and keeps the transaction ID as the
// reference-transaction token.
func (a *Adapter) CreateProfile(ctx context.Context, customer domain.CustomerRef, data domain.PaymentData) (*domain.ProfileToken, error) {
	params := cardParams(data)
	params.Set("PAYMENTACTION", "Authorization")
	params.Set("AMT", "0.00")
	params.Set("EMAIL", customer.Email)

	response, err := a.call(ctx, "DoDirectPayment", params)
	if err != nil {
		return nil, err
	}
	if !ackSuccess(response) {
		return nil, domain.ErrGatewayRejected
	}

	transactionID := strings.TrimSpace(response.Get("TRANSACTIONID"))
	if transactionID == "" {
		return nil, domain.ErrGatewayRejected
	}

	return &domain.ProfileToken{
		Token:     transactionID,
		MaskedPAN: maskPAN(data.CardNumber),
		Brand:     cardBrand(data.CardNumber),
		ExpMonth:  data.ExpMonth,
		ExpYear:   data.ExpYear,
	}, nil
}

func (a *Adapter) UpdateProfile(ctx context.Context, customer domain.CustomerRef, current domain.ProfileToken, data domain.PaymentData) (*domain.ProfileToken, bool, error) {
	_ = current

	token, err := a.CreateProfile(ctx, customer, data)
	if err != nil {
		if err == domain.ErrGatewayRejected {
			return nil, false, nil
		}
		return nil, false, err
	}
	return token, true, nil
}

// DeleteProfile: reference transactions hold no server-side profile
// object; abandoning the token is the deletion.
func (a *Adapter) DeleteProfile(ctx context.Context, customer domain.CustomerRef, current domain.ProfileToken) (bool, error) {
	_, _, _ = ctx, customer, current
	return true, nil
}

func (a *Adapter) ChargeProfile(ctx context.Context, token domain.ProfileToken, amount int64, currency string, invoiceID snowflake.ID) (*domain.Transaction, error) {
	params := url.Values{}
	params.Set("REFERENCEID", token.Token)
	params.Set("PAYMENTACTION", "Sale")
	params.Set("AMT", domain.FormatAmount(amount))
	params.Set("CURRENCYCODE", strings.ToUpper(currency))
	params.Set("INVNUM", invoiceID.String())

	response, err := a.call(ctx, "DoReferenceTransaction", params)
	if err != nil {
		return nil, err
	}

	outcome := domain.OutcomeDeclined
	gatewayRef := strings.TrimSpace(response.Get("TRANSACTIONID"))
	if ackSuccess(response) && gatewayRef != "" {
		outcome = domain.OutcomeSuccess
	}
	if gatewayRef == "" {
		gatewayRef = "invoice:" + invoiceID.String()
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: gatewayRef,
		InvoiceID:  invoiceID,
		Kind:       domain.KindPayment,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Refund issues a RefundTransaction against the captured payment.
func (a *Adapter) Refund(ctx context.Context, paymentRef string, amount int64, currency string, invoiceID snowflake.ID) (*domain.Transaction, error) {
	params := url.Values{}
	params.Set("TRANSACTIONID", paymentRef)
	params.Set("REFUNDTYPE", "Partial")
	params.Set("AMT", domain.FormatAmount(amount))
	params.Set("CURRENCYCODE", strings.ToUpper(currency))
	params.Set("INVOICEID", invoiceID.String())

	response, err := a.call(ctx, "RefundTransaction", params)
	if err != nil {
		return nil, err
	}

	outcome := domain.OutcomeDeclined
	gatewayRef := strings.TrimSpace(response.Get("REFUNDTRANSACTIONID"))
	if ackSuccess(response) && gatewayRef != "" {
		outcome = domain.OutcomeSuccess
	}
	if gatewayRef == "" {
		gatewayRef = "refund:" + invoiceID.String()
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: gatewayRef,
		InvoiceID:  invoiceID,
		Kind:       domain.KindRefund,
		Outcome:    outcome,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		OccurredAt: time.Now().UTC(),
	}, nil
}

func cardBrand(cardNumber string) string {
	digits := strings.ReplaceAll(cardNumber, " ", "")
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "5"):
		return "mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case strings.HasPrefix(digits, "6"):
		return "discover"
	default:
		return ""
	}
}
