package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/gateway"
	"github.com/responsiv/pay/internal/gateway/adapters"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	configdomain "github.com/responsiv/pay/internal/gatewayconfig/domain"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	invoicerepo "github.com/responsiv/pay/internal/invoice/repository"
	invoiceservice "github.com/responsiv/pay/internal/invoice/service"
	"github.com/responsiv/pay/internal/locks"
	"github.com/responsiv/pay/internal/metrics"
	profiledomain "github.com/responsiv/pay/internal/profile/domain"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testMetrics = metrics.New()

type fakeAdapter struct {
	mu            sync.Mutex
	initiateFails int
	initiated     int
	callbackTxn   *gatewaydomain.Transaction
	callbackErr   error
}

func (a *fakeAdapter) Provider() string { return "fakepay" }

func (a *fakeAdapter) Initiate(ctx context.Context, order gatewaydomain.ChargeOrder) (*gatewaydomain.PaymentInstruction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initiated++
	if a.initiateFails > 0 {
		a.initiateFails--
		return nil, gatewaydomain.ErrGatewayUnavailable
	}
	return &gatewaydomain.PaymentInstruction{
		Kind:      gatewaydomain.InstructionRedirect,
		URL:       "https://fakepay.example.com/checkout",
		Reference: "fp_" + order.InvoiceID.String(),
	}, nil
}

func (a *fakeAdapter) HandleCallback(ctx context.Context, payload []byte, headers http.Header) (*gatewaydomain.Transaction, error) {
	if a.callbackErr != nil {
		return nil, a.callbackErr
	}
	return a.callbackTxn, nil
}

func (a *fakeAdapter) CallbackAck() gatewaydomain.Ack {
	return gatewaydomain.Ack{Status: http.StatusOK, ContentType: "text/plain", Body: "OK"}
}

type fakeFactory struct {
	adapter gatewaydomain.Adapter
}

func (f *fakeFactory) Provider() string { return "fakepay" }

func (f *fakeFactory) NewAdapter(cfg gatewaydomain.AdapterConfig) (gatewaydomain.Adapter, error) {
	return f.adapter, nil
}

type configStub struct{}

func (configStub) Upsert(ctx context.Context, provider string, config map[string]any) error {
	return nil
}

func (configStub) Resolve(ctx context.Context, provider string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (configStub) SetActive(ctx context.Context, provider string, active bool) error { return nil }

func (configStub) List(ctx context.Context, known []string) ([]configdomain.ProviderStatus, error) {
	return nil, nil
}

type taxStub struct{}

func (taxStub) ResolveClass(ctx context.Context, code string) (*taxdomain.TaxClass, error) {
	return nil, nil
}

type profileStub struct{}

func (profileStub) Create(ctx context.Context, callerID snowflake.ID, req profiledomain.CreateProfileRequest) (*profiledomain.PaymentProfile, error) {
	return nil, profiledomain.ErrNotFound
}

func (profileStub) Update(ctx context.Context, callerID, profileID snowflake.ID, data gatewaydomain.PaymentData) (*profiledomain.PaymentProfile, error) {
	return nil, profiledomain.ErrNotFound
}

func (profileStub) Delete(ctx context.Context, callerID, profileID snowflake.ID) error {
	return nil
}

func (profileStub) Get(ctx context.Context, profileID snowflake.ID) (*profiledomain.PaymentProfile, error) {
	return nil, profiledomain.ErrNotFound
}

func (profileStub) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]profiledomain.PaymentProfile, error) {
	return nil, nil
}

func (profileStub) FormFields(ctx context.Context, profileID snowflake.ID) ([]profiledomain.FieldDescriptor, error) {
	return nil, profiledomain.ErrNotFound
}

func setupOrchestrator(t *testing.T, adapter *fakeAdapter) (*Orchestrator, invoicedomain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.GatewayTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  invoicerepo.Provide(),
		Taxes: taxStub{},
	})

	resolver := gateway.NewResolver(gateway.ResolverParams{
		Registry: adapters.NewRegistry(&fakeFactory{adapter: adapter}),
		Configs:  configStub{},
		Log:      zap.NewNop(),
	})

	orch := New(Params{
		Log:      zap.NewNop(),
		Gateways: resolver,
		Invoices: invoices,
		Profiles: profileStub{},
		Locker:   locks.NewKeyedMutex(),
		Metrics:  testMetrics,
	})
	return orch, invoices, node
}

func createDraft(t *testing.T, invoices invoicedomain.Service, node *snowflake.Node, amount int64) invoicedomain.Invoice {
	t.Helper()
	detail, err := invoices.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: node.Generate().String(),
		Currency:   "USD",
		Items:      []invoicedomain.ItemInput{{Description: "Widget", Quantity: 1, UnitAmount: amount}},
	})
	require.NoError(t, err)
	return detail.Invoice
}

func TestInitiatePaymentMovesDraftToPending(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)
	ctx := context.Background()

	instruction, err := orch.InitiatePayment(ctx, invoice.ID.String(), InitiateRequest{Provider: "fakepay"})
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.InstructionRedirect, instruction.Kind)
	assert.Equal(t, "fp_"+invoice.ID.String(), instruction.Reference)

	detail, err := invoices.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, detail.Invoice.Status)
	require.Len(t, detail.Transactions, 1)
	assert.Equal(t, gatewaydomain.OutcomePending, detail.Transactions[0].Outcome)
}

func TestInitiatePaymentRetriesUnavailableGateway(t *testing.T) {
	adapter := &fakeAdapter{initiateFails: 2}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)

	_, err := orch.InitiatePayment(context.Background(), invoice.ID.String(), InitiateRequest{Provider: "fakepay"})
	require.NoError(t, err)
	assert.Equal(t, 3, adapter.initiated)
}

func TestInitiatePaymentGivesUpAfterMaxAttempts(t *testing.T) {
	adapter := &fakeAdapter{initiateFails: 5}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)

	_, err := orch.InitiatePayment(context.Background(), invoice.ID.String(), InitiateRequest{Provider: "fakepay"})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
	assert.Equal(t, 3, adapter.initiated)

	detail, err := invoices.GetByID(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, detail.Invoice.Status)
}

func TestHandleCallbackSettlesInvoice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)
	ctx := context.Background()

	_, err := orch.InitiatePayment(ctx, invoice.ID.String(), InitiateRequest{Provider: "fakepay"})
	require.NoError(t, err)

	adapter.callbackTxn = &gatewaydomain.Transaction{
		Provider:   "fakepay",
		GatewayRef: "fp_charge_1",
		InvoiceID:  invoice.ID,
		Kind:       gatewaydomain.KindPayment,
		Outcome:    gatewaydomain.OutcomeSuccess,
		Amount:     1000,
		Currency:   "USD",
		RawPayload: []byte("status=Completed&txn_id=fp_charge_1"),
	}

	ack, err := orch.HandleCallback(ctx, "fakepay", []byte("payload"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ack.Status)

	detail, err := invoices.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, detail.Invoice.Status)

	// Redelivery acknowledges without another state change.
	ack, err = orch.HandleCallback(ctx, "fakepay", []byte("payload"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ack.Status)

	detail, err = invoices.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Len(t, detail.Transactions, 2)
}

func TestHandleCallbackIgnoredEventAcks(t *testing.T) {
	adapter := &fakeAdapter{callbackErr: gatewaydomain.ErrEventIgnored}
	orch, _, _ := setupOrchestrator(t, adapter)

	ack, err := orch.HandleCallback(context.Background(), "fakepay", []byte("noise"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ack.Status)
}

func TestHandleCallbackInvalidSignature(t *testing.T) {
	adapter := &fakeAdapter{callbackErr: gatewaydomain.ErrInvalidSignature}
	orch, _, _ := setupOrchestrator(t, adapter)

	_, err := orch.HandleCallback(context.Background(), "fakepay", []byte("forged"), nil)
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)
}

func TestRefundWithoutRefundGatewayRecordsManualTxn(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)
	ctx := context.Background()

	_, err := orch.InitiatePayment(ctx, invoice.ID.String(), InitiateRequest{Provider: "fakepay"})
	require.NoError(t, err)
	_, err = invoices.ApplyTransaction(ctx, invoicedomain.GatewayTransaction{
		InvoiceID: invoice.ID, Provider: "fakepay", GatewayRef: "fp_charge_1",
		Kind: gatewaydomain.KindPayment, Outcome: gatewaydomain.OutcomeSuccess,
		Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	refunded, err := orch.Refund(ctx, invoice.ID.String(), 400)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyRefunded, refunded.Status)
	assert.Equal(t, int64(400), refunded.RefundedAmount)

	_, err = orch.Refund(ctx, invoice.ID.String(), 700)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRefundAmount)
}

func TestRefundRequiresPaidInvoice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)

	_, err := orch.Refund(context.Background(), invoice.ID.String(), 400)
	assert.ErrorIs(t, err, invoicedomain.ErrNotPaid)
}

func TestSettleOfflinePaysDraftInvoice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)
	ctx := context.Background()

	settled, err := orch.SettleOffline(ctx, invoice.ID.String(), "bank-wire-42")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, settled.Status)

	detail, err := invoices.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, detail.Transactions, 1)
	assert.Equal(t, "bank-wire-42", detail.Transactions[0].GatewayRef)
	assert.Equal(t, "offline", detail.Transactions[0].Provider)
}

func TestCancelDraftInvoice(t *testing.T) {
	adapter := &fakeAdapter{}
	orch, invoices, node := setupOrchestrator(t, adapter)
	invoice := createDraft(t, invoices, node, 1000)

	cancelled, err := orch.Cancel(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, cancelled.Status)

	_, err = orch.Cancel(context.Background(), "")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidInvoiceID)
}
