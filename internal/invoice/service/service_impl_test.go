package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	"github.com/responsiv/pay/internal/invoice/repository"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type taxStub struct {
	classes map[string]*taxdomain.TaxClass
}

func (s *taxStub) ResolveClass(ctx context.Context, code string) (*taxdomain.TaxClass, error) {
	if s.classes == nil {
		return nil, nil
	}
	return s.classes[code], nil
}

func setupInvoiceService(t *testing.T, taxes taxdomain.Resolver) (invoicedomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.GatewayTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	if taxes == nil {
		taxes = &taxStub{}
	}
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Taxes: taxes,
	})
	return svc, db, node
}

func createDraftInvoice(t *testing.T, svc invoicedomain.Service, node *snowflake.Node, amount int64) invoicedomain.Invoice {
	t.Helper()

	detail, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "usd",
		Items: []invoicedomain.ItemInput{
			{Description: "Widget", Quantity: 1, UnitAmount: amount},
		},
	})
	require.NoError(t, err)
	return detail.Invoice
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	rate := 0.10
	taxes := &taxStub{classes: map[string]*taxdomain.TaxClass{
		"US_SALES_TAX": {Code: "US_SALES_TAX", TaxMode: taxdomain.TaxModeExclusive, Rate: &rate},
	}}
	svc, _, node := setupInvoiceService(t, taxes)

	detail, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "usd",
		Items: []invoicedomain.ItemInput{
			{Description: "Widget", Quantity: 2, UnitAmount: 1000, TaxClass: "US_SALES_TAX"},
			{Description: "Gadget", Quantity: 1, UnitAmount: 500},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusDraft, detail.Invoice.Status)
	assert.Equal(t, "USD", detail.Invoice.Currency)
	assert.Equal(t, int64(2500), detail.Invoice.SubtotalAmount)
	assert.Equal(t, int64(200), detail.Invoice.TaxAmount)
	assert.Equal(t, int64(2700), detail.Invoice.TotalAmount)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, int64(200), detail.Items[0].TaxAmount)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: "not-a-number",
		Currency:   "USD",
		Items:      []invoicedomain.ItemInput{{Quantity: 1, UnitAmount: 100}},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCustomer)

	_, err = svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "DOLLARS",
		Items:      []invoicedomain.ItemInput{{Quantity: 1, UnitAmount: 100}},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCurrency)

	_, err = svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNoItems)

	_, err = svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "USD",
		Items:      []invoicedomain.ItemInput{{Quantity: 0, UnitAmount: 100}},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidItem)
}

func TestDraftInvoiceCannotBePaidDirectly(t *testing.T) {
	svc, _, _ := setupInvoiceService(t, nil)
	node := mustNode(t)
	invoice := createDraftInvoice(t, svc, node, 1000)

	_, err := svc.ApplyTransaction(context.Background(), invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "pi_1",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     1000,
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	detail, err := svc.GetByID(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, detail.Invoice.Status)
}

func TestSuccessfulPaymentFlow(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	pending, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		GatewayRef: "pi_1",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomePending,
		Amount:     1000,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, pending.Status)
	assert.Equal(t, "stripe", pending.Provider)

	result, err := svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "ch_1",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     1000,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, result.Invoice.Status)
	require.NotNil(t, result.Invoice.PaidAt)
}

func TestAmountMismatchRejectsPayment(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	_, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)

	_, err = svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "ch_short",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     999,
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	detail, err := svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, detail.Invoice.Status)
	// The rejected transaction must not survive the rollback.
	assert.Empty(t, detail.Transactions)
}

func TestReplayedTransactionIsIgnored(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	_, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)

	txn := invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "ch_1",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     1000,
		Currency:   "USD",
	}

	first, err := svc.ApplyTransaction(ctx, txn)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	replay, err := svc.ApplyTransaction(ctx, txn)
	require.NoError(t, err)
	assert.False(t, replay.Applied)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, replay.Invoice.Status)

	detail, err := svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Len(t, detail.Transactions, 1)
}

func TestConcurrentIdenticalCallbacks(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	_, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)

	txn := invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "ch_concurrent",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     1000,
		Currency:   "USD",
	}

	const deliveries = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ApplyTransaction(ctx, txn)
			if err != nil {
				return
			}
			if result.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)

	detail, err := svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, detail.Invoice.Status)
	assert.Len(t, detail.Transactions, 1)
}

func TestDeclinedPaymentFailsInvoice(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	_, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)

	result, err := svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID:  invoice.ID,
		Provider:   "stripe",
		GatewayRef: "ch_declined",
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeDeclined,
		Amount:     1000,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, result.Invoice.Status)
}

func TestRefundLifecycle(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	invoice := createDraftInvoice(t, svc, node, 1000)
	ctx := context.Background()

	_, err := svc.BeginPayment(ctx, invoice.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)
	_, err = svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: invoice.ID, Provider: "stripe", GatewayRef: "ch_1",
		Kind: gatewaydomain.KindPayment, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	partial, err := svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: invoice.ID, Provider: "stripe", GatewayRef: "re_1",
		Kind: gatewaydomain.KindRefund, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 400, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyRefunded, partial.Invoice.Status)
	assert.Equal(t, int64(400), partial.Invoice.RefundedAmount)

	_, err = svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: invoice.ID, Provider: "stripe", GatewayRef: "re_too_much",
		Kind: gatewaydomain.KindRefund, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 700, Currency: "USD",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRefundAmount)

	full, err := svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: invoice.ID, Provider: "stripe", GatewayRef: "re_2",
		Kind: gatewaydomain.KindRefund, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 600, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusRefunded, full.Invoice.Status)
	assert.Equal(t, int64(1000), full.Invoice.RefundedAmount)
}

func TestCancelTransitions(t *testing.T) {
	svc, _, node := setupInvoiceService(t, nil)
	ctx := context.Background()

	draft := createDraftInvoice(t, svc, node, 1000)
	cancelled, err := svc.Cancel(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, draft.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	paid := createDraftInvoice(t, svc, node, 1000)
	_, err = svc.BeginPayment(ctx, paid.ID, "stripe", invoicedomain.GatewayTransaction{})
	require.NoError(t, err)
	_, err = svc.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: paid.ID, Provider: "stripe", GatewayRef: "ch_paid",
		Kind: gatewaydomain.KindPayment, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, paid.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
