package stripe

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway/domain"
)

// Stored profiles map to Stripe customer objects: the opaque token is
// the customer ID, and the attached card supplies display metadata.

func (a *Adapter) CreateProfile(ctx context.Context, customer domain.CustomerRef, data domain.PaymentData) (*domain.ProfileToken, error) {
	if strings.TrimSpace(data.Token) == "" {
		return nil, domain.ErrGatewayRejected
	}

	values := url.Values{}
	values.Set("source", data.Token)
	values.Set("email", customer.Email)
	values.Set("description", customer.Name)
	values.Set("metadata[customer_id]", customer.ID.String())
	values.Set("expand[]", "sources")

	created, err := a.client.createCustomer(ctx, values)
	if err != nil {
		return nil, err
	}
	return profileTokenFromCustomer(created), nil
}

func (a *Adapter) UpdateProfile(ctx context.Context, customer domain.CustomerRef, current domain.ProfileToken, data domain.PaymentData) (*domain.ProfileToken, bool, error) {
	_ = customer
	if strings.TrimSpace(data.Token) == "" {
		return nil, false, nil
	}

	values := url.Values{}
	values.Set("source", data.Token)
	values.Set("expand[]", "sources")

	updated, err := a.client.updateCustomer(ctx, current.Token, values)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			// Soft rejection: the stored token stays valid.
			return nil, false, nil
		}
		return nil, false, err
	}
	if updated.ID == "" {
		return nil, false, nil
	}
	return profileTokenFromCustomer(updated), true, nil
}

func (a *Adapter) DeleteProfile(ctx context.Context, customer domain.CustomerRef, current domain.ProfileToken) (bool, error) {
	_ = customer
	if err := a.client.deleteCustomer(ctx, current.Token); err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Adapter) ChargeProfile(ctx context.Context, token domain.ProfileToken, amount int64, currency string, invoiceID snowflake.ID) (*domain.Transaction, error) {
	values := url.Values{}
	values.Set("customer", token.Token)
	values.Set("amount", strconv.FormatInt(amount, 10))
	values.Set("currency", strings.ToLower(currency))
	values.Set("metadata[invoice_id]", invoiceID.String())

	charge, err := a.client.createCharge(ctx, values, "invoice:"+invoiceID.String())
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			return &domain.Transaction{
				Provider:   providerID,
				GatewayRef: "invoice:" + invoiceID.String(),
				InvoiceID:  invoiceID,
				Kind:       domain.KindPayment,
				Outcome:    domain.OutcomeDeclined,
				Amount:     amount,
				Currency:   strings.ToUpper(currency),
				OccurredAt: nowUTC(),
			}, nil
		}
		return nil, err
	}

	outcome := domain.OutcomeError
	switch charge.Status {
	case "succeeded":
		outcome = domain.OutcomeSuccess
	case "pending":
		outcome = domain.OutcomePending
	case "failed":
		outcome = domain.OutcomeDeclined
	}

	return &domain.Transaction{
		Provider:   providerID,
		GatewayRef: charge.ID,
		InvoiceID:  invoiceID,
		Kind:       domain.KindPayment,
		Outcome:    outcome,
		Amount:     charge.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(charge.Currency)),
		OccurredAt: timestamp(charge.Created, 0),
	}, nil
}

func profileTokenFromCustomer(customer stripeCustomer) *domain.ProfileToken {
	token := &domain.ProfileToken{Token: customer.ID}
	if len(customer.Sources.Data) > 0 {
		card := customer.Sources.Data[0]
		if card.Last4 != "" {
			token.MaskedPAN = "**** **** **** " + card.Last4
		}
		token.Brand = card.Brand
		token.ExpMonth = card.ExpMonth
		token.ExpYear = card.ExpYear
	}
	return token
}
