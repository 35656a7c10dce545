// Package orchestrator coordinates gateways, invoices and profiles.
// It owns the retry policy for flaky gateways and the per-invoice
// serialization of callback application.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/responsiv/pay/internal/gateway"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	"github.com/responsiv/pay/internal/locks"
	"github.com/responsiv/pay/internal/metrics"
	profiledomain "github.com/responsiv/pay/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	invoiceLockTTL  = 30 * time.Second
	offlineProvider = "offline"
)

type InitiateRequest struct {
	Provider    string `json:"provider"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifyURL   string `json:"notify_url"`
	Description string `json:"description"`
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Gateways *gateway.Resolver
	Invoices invoicedomain.Service
	Profiles profiledomain.Service
	Locker   locks.Locker
	Metrics  *metrics.Metrics
}

type Orchestrator struct {
	log      *zap.Logger
	gateways *gateway.Resolver
	invoices invoicedomain.Service
	profiles profiledomain.Service
	locker   locks.Locker
	metrics  *metrics.Metrics
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:      p.Log.Named("orchestrator"),
		gateways: p.Gateways,
		invoices: p.Invoices,
		profiles: p.Profiles,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}
}

// InitiatePayment starts a payment attempt for a draft or pending
// invoice and returns the provider's instruction (redirect form,
// client secret, or manual settlement details).
func (o *Orchestrator) InitiatePayment(ctx context.Context, invoiceID string, req InitiateRequest) (*gatewaydomain.PaymentInstruction, error) {
	detail, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice := detail.Invoice

	switch invoice.Status {
	case invoicedomain.InvoiceStatusDraft, invoicedomain.InvoiceStatusPending:
	default:
		return nil, invoicedomain.ErrInvalidStateTransition
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	adapter, err := o.gateways.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}

	order := gatewaydomain.ChargeOrder{
		InvoiceID:   invoice.ID,
		CustomerID:  invoice.CustomerID,
		Amount:      invoice.TotalAmount,
		Currency:    invoice.Currency,
		Description: strings.TrimSpace(req.Description),
		ReturnURL:   strings.TrimSpace(req.ReturnURL),
		CancelURL:   strings.TrimSpace(req.CancelURL),
		NotifyURL:   strings.TrimSpace(req.NotifyURL),
	}
	if order.Description == "" {
		order.Description = "Invoice " + invoice.ID.String()
	}

	var instruction *gatewaydomain.PaymentInstruction
	err = o.withRetry(ctx, provider, "initiate", func() error {
		var ierr error
		instruction, ierr = adapter.Initiate(ctx, order)
		return ierr
	})
	if err != nil {
		return nil, err
	}

	pending := invoicedomain.GatewayTransaction{
		GatewayRef: instruction.Reference,
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomePending,
		Amount:     invoice.TotalAmount,
		Currency:   invoice.Currency,
	}
	if _, err := o.invoices.BeginPayment(ctx, invoice.ID, provider, pending); err != nil {
		return nil, err
	}

	return instruction, nil
}

// HandleCallback verifies an asynchronous provider notification and
// applies it under the invoice lock. Replays of a known gateway
// reference acknowledge without touching the invoice.
func (o *Orchestrator) HandleCallback(ctx context.Context, provider string, payload []byte, headers http.Header) (gatewaydomain.Ack, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, err := o.gateways.Resolve(ctx, provider)
	if err != nil {
		return gatewaydomain.Ack{}, err
	}

	var txn *gatewaydomain.Transaction
	err = o.withRetry(ctx, provider, "callback_verify", func() error {
		var herr error
		txn, herr = adapter.HandleCallback(ctx, payload, headers)
		return herr
	})
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			// Not an event we track; acknowledge so the provider
			// stops redelivering.
			return adapter.CallbackAck(), nil
		}
		reason := "verification_failed"
		if errors.Is(err, gatewaydomain.ErrInvalidSignature) {
			reason = "invalid_signature"
		}
		o.metrics.RecordRejectedCallback(provider, reason)
		return gatewaydomain.Ack{}, err
	}

	if _, err := o.apply(ctx, *txn); err != nil {
		o.metrics.RecordRejectedCallback(provider, "apply_failed")
		return gatewaydomain.Ack{}, err
	}

	return adapter.CallbackAck(), nil
}

// ChargeProfile performs an off-session charge of a stored profile
// and settles the invoice in one pass.
func (o *Orchestrator) ChargeProfile(ctx context.Context, invoiceID, profileID string) (invoicedomain.Invoice, error) {
	detail, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice := detail.Invoice

	pid, err := snowflake.ParseString(strings.TrimSpace(profileID))
	if err != nil || pid == 0 {
		return invoicedomain.Invoice{}, profiledomain.ErrNotFound
	}
	profile, err := o.profiles.Get(ctx, pid)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if profile.CustomerID != invoice.CustomerID {
		return invoicedomain.Invoice{}, profiledomain.ErrNotOwner
	}

	adapter, err := o.gateways.Resolve(ctx, profile.Provider)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	charger, ok := adapter.(gatewaydomain.ProfileGateway)
	if !ok {
		return invoicedomain.Invoice{}, gatewaydomain.ErrProfilesUnsupported
	}

	if _, err := o.invoices.BeginPayment(ctx, invoice.ID, profile.Provider, invoicedomain.GatewayTransaction{}); err != nil {
		return invoicedomain.Invoice{}, err
	}

	var txn *gatewaydomain.Transaction
	err = o.withRetry(ctx, profile.Provider, "charge_profile", func() error {
		var cerr error
		txn, cerr = charger.ChargeProfile(ctx, profile.Token(), invoice.TotalAmount, invoice.Currency, invoice.ID)
		return cerr
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	record := o.toRecord(*txn)
	record.ProfileID = &profile.ID
	result, err := o.applyRecord(ctx, record)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if txn.Outcome != gatewaydomain.OutcomeSuccess {
		return result.Invoice, gatewaydomain.ErrGatewayRejected
	}
	return result.Invoice, nil
}

// Refund pushes a refund through the original provider when it
// supports one; otherwise the refund is recorded as settled out of
// band.
func (o *Orchestrator) Refund(ctx context.Context, invoiceID string, amount int64) (invoicedomain.Invoice, error) {
	detail, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice := detail.Invoice

	switch invoice.Status {
	case invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusPartiallyRefunded:
	default:
		return invoicedomain.Invoice{}, invoicedomain.ErrNotPaid
	}
	if amount <= 0 || invoice.RefundedAmount+amount > invoice.TotalAmount {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidRefundAmount
	}

	paymentRef := ""
	for _, recorded := range detail.Transactions {
		if recorded.Kind == gatewaydomain.KindPayment && recorded.Outcome == gatewaydomain.OutcomeSuccess {
			paymentRef = recorded.GatewayRef
		}
	}

	var txn *gatewaydomain.Transaction
	adapter, err := o.gateways.Resolve(ctx, invoice.Provider)
	if err == nil {
		if refunder, ok := adapter.(gatewaydomain.RefundGateway); ok && paymentRef != "" {
			err = o.withRetry(ctx, invoice.Provider, "refund", func() error {
				var rerr error
				txn, rerr = refunder.Refund(ctx, paymentRef, amount, invoice.Currency, invoice.ID)
				return rerr
			})
			if err != nil {
				return invoicedomain.Invoice{}, err
			}
		}
	} else if !errors.Is(err, gatewaydomain.ErrProviderNotFound) {
		return invoicedomain.Invoice{}, err
	}

	if txn == nil {
		// Provider cannot push refunds; record the out-of-band
		// settlement.
		txn = &gatewaydomain.Transaction{
			Provider:   invoice.Provider,
			GatewayRef: "manual-refund:" + uuid.NewString(),
			InvoiceID:  invoice.ID,
			Kind:       gatewaydomain.KindRefund,
			Outcome:    gatewaydomain.OutcomeSuccess,
			Amount:     amount,
			Currency:   invoice.Currency,
			OccurredAt: time.Now().UTC(),
		}
	}

	result, err := o.apply(ctx, *txn)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if txn.Outcome != gatewaydomain.OutcomeSuccess {
		return result.Invoice, gatewaydomain.ErrGatewayRejected
	}
	return result.Invoice, nil
}

// SettleOffline marks an offline-gateway invoice as paid against a
// manual reference (bank transfer id, receipt number).
func (o *Orchestrator) SettleOffline(ctx context.Context, invoiceID string, reference string) (invoicedomain.Invoice, error) {
	detail, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice := detail.Invoice

	if invoice.Status == invoicedomain.InvoiceStatusDraft {
		if _, err := o.invoices.BeginPayment(ctx, invoice.ID, offlineProvider, invoicedomain.GatewayTransaction{}); err != nil {
			return invoicedomain.Invoice{}, err
		}
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = "offline:" + uuid.NewString()
	}

	txn := gatewaydomain.Transaction{
		Provider:   offlineProvider,
		GatewayRef: reference,
		InvoiceID:  invoice.ID,
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     invoice.TotalAmount,
		Currency:   invoice.Currency,
		OccurredAt: time.Now().UTC(),
	}

	result, err := o.apply(ctx, txn)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return result.Invoice, nil
}

// Cancel aborts a draft or pending invoice.
func (o *Orchestrator) Cancel(ctx context.Context, invoiceID string) (invoicedomain.Invoice, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceID
	}

	release, err := o.locker.Acquire(ctx, lockKey(id), invoiceLockTTL)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	defer release()

	return o.invoices.Cancel(ctx, id)
}

func (o *Orchestrator) apply(ctx context.Context, txn gatewaydomain.Transaction) (invoicedomain.ApplyResult, error) {
	return o.applyRecord(ctx, o.toRecord(txn))
}

func (o *Orchestrator) applyRecord(ctx context.Context, record invoicedomain.GatewayTransaction) (invoicedomain.ApplyResult, error) {
	release, err := o.locker.Acquire(ctx, lockKey(record.InvoiceID), invoiceLockTTL)
	if err != nil {
		return invoicedomain.ApplyResult{}, err
	}
	defer release()

	result, err := o.invoices.ApplyTransaction(ctx, record)
	if err != nil {
		return invoicedomain.ApplyResult{}, err
	}

	if result.Applied {
		o.metrics.RecordTransaction(record.Provider, string(record.Outcome))
		o.log.Info("transaction applied",
			zap.String("provider", record.Provider),
			zap.String("gateway_ref", record.GatewayRef),
			zap.String("invoice_id", record.InvoiceID.String()),
			zap.String("kind", string(record.Kind)),
			zap.String("outcome", string(record.Outcome)),
			zap.String("invoice_status", string(result.Invoice.Status)),
		)
	} else {
		o.log.Info("duplicate transaction ignored",
			zap.String("provider", record.Provider),
			zap.String("gateway_ref", record.GatewayRef),
			zap.String("invoice_id", record.InvoiceID.String()),
		)
	}
	return result, nil
}

func (o *Orchestrator) toRecord(txn gatewaydomain.Transaction) invoicedomain.GatewayTransaction {
	record := invoicedomain.GatewayTransaction{
		InvoiceID:  txn.InvoiceID,
		ProfileID:  txn.ProfileID,
		Provider:   txn.Provider,
		GatewayRef: txn.GatewayRef,
		Kind:       txn.Kind,
		Outcome:    txn.Outcome,
		Amount:     txn.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(txn.Currency)),
	}
	if len(txn.RawPayload) > 0 {
		if json.Valid(txn.RawPayload) {
			record.RawPayload = datatypes.JSON(txn.RawPayload)
		} else {
			// IPN payloads are form encoded; wrap them so the
			// audit column stays valid JSON.
			wrapped, err := json.Marshal(map[string]string{"raw": string(txn.RawPayload)})
			if err == nil {
				record.RawPayload = datatypes.JSON(wrapped)
			}
		}
	}
	return record
}

func lockKey(invoiceID snowflake.ID) string {
	return "invoice:" + invoiceID.String()
}
