package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	taxservice "github.com/responsiv/pay/internal/tax/service"
	"github.com/responsiv/pay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  invoicedomain.Repository
	Taxes taxdomain.Resolver
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  invoicedomain.Repository
	taxes taxdomain.Resolver
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		repo:  p.Repo,
		taxes: p.Taxes,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceDetail, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidCustomer
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidCurrency
	}
	if len(req.Items) == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrNoItems
	}

	now := time.Now().UTC()
	invoiceID := s.genID.Generate()

	items := make([]invoicedomain.InvoiceItem, 0, len(req.Items))
	for _, input := range req.Items {
		if input.Quantity <= 0 || input.UnitAmount < 0 {
			return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidItem
		}

		item := invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitAmount:  input.UnitAmount,
			Amount:      input.Quantity * input.UnitAmount,
			TaxClass:    strings.ToUpper(strings.TrimSpace(input.TaxClass)),
			CreatedAt:   now,
		}

		class, err := s.taxes.ResolveClass(ctx, item.TaxClass)
		if err != nil {
			return invoicedomain.InvoiceDetail{}, err
		}
		if class != nil {
			switch class.TaxMode {
			case taxdomain.TaxModeInclusive:
				item.TaxAmount = taxservice.ComputeTaxInclusive(item.Amount, class.Rate)
			default:
				item.TaxAmount = taxservice.ComputeTaxExclusive(item.Amount, class.Rate)
			}
		}
		items = append(items, item)
	}

	subtotal, tax, total := computeTotals(ctx, items, s.taxModeOf)

	invoice := invoicedomain.Invoice{
		ID:             invoiceID,
		CustomerID:     customerID,
		Status:         invoicedomain.InvoiceStatusDraft,
		Currency:       currency,
		SubtotalAmount: subtotal,
		TaxAmount:      tax,
		TotalAmount:    total,
		IssuedAt:       &now,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertInvoice(ctx, tx, &invoice); err != nil {
			return err
		}
		for i := range items {
			if err := s.repo.InsertItem(ctx, tx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	return invoicedomain.InvoiceDetail{Invoice: invoice, Items: items}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidInvoiceID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	txns, err := s.repo.ListTransactions(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	return invoicedomain.InvoiceDetail{
		Invoice:      *invoice,
		Items:        items,
		Transactions: txns,
	}, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListInvoiceFilter{
		Status:      req.Status,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}
	if customerID := strings.TrimSpace(req.CustomerID); customerID != "" {
		id, err := snowflake.ParseString(customerID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidCustomer
		}
		filter.CustomerID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) BeginPayment(ctx context.Context, invoiceID snowflake.ID, provider string, txn invoicedomain.GatewayTransaction) (invoicedomain.Invoice, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return invoicedomain.Invoice{}, gatewaydomain.ErrProviderNotFound
	}

	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}

		now := time.Now().UTC()
		switch invoice.Status {
		case invoicedomain.InvoiceStatusDraft:
			invoice.Status = invoicedomain.InvoiceStatusPending
			invoice.Provider = provider
		case invoicedomain.InvoiceStatusPending:
			// Re-initiating a pending invoice is allowed; the
			// customer may have abandoned the first attempt.
			invoice.Provider = provider
		default:
			return invoicedomain.ErrInvalidStateTransition
		}
		invoice.UpdatedAt = now

		if txn.GatewayRef != "" {
			txn.ID = s.genID.Generate()
			txn.InvoiceID = invoice.ID
			txn.Provider = provider
			txn.CreatedAt = now
			if _, err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateState(ctx, tx, invoice); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return updated, nil
}

func (s *Service) ApplyTransaction(ctx context.Context, txn invoicedomain.GatewayTransaction) (invoicedomain.ApplyResult, error) {
	if txn.InvoiceID == 0 {
		return invoicedomain.ApplyResult{}, invoicedomain.ErrInvalidInvoiceID
	}

	var result invoicedomain.ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, txn.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}

		now := time.Now().UTC()
		txn.ID = s.genID.Generate()
		txn.CreatedAt = now

		inserted, err := s.repo.InsertTransaction(ctx, tx, &txn)
		if err != nil {
			return err
		}
		if !inserted {
			// Replay of an already-recorded gateway reference.
			result = invoicedomain.ApplyResult{Invoice: *invoice, Applied: false}
			return nil
		}

		next, err := s.nextStatus(invoice, txn)
		if err != nil {
			return err
		}
		if next == invoice.Status {
			result = invoicedomain.ApplyResult{Invoice: *invoice, Applied: true}
			return nil
		}

		invoice.Status = next
		invoice.UpdatedAt = now
		if next == invoicedomain.InvoiceStatusPaid {
			invoice.PaidAt = &now
		}
		if txn.Kind == gatewaydomain.KindRefund && txn.Outcome == gatewaydomain.OutcomeSuccess {
			invoice.RefundedAmount += txn.Amount
		}

		if err := s.repo.UpdateState(ctx, tx, invoice); err != nil {
			return err
		}
		result = invoicedomain.ApplyResult{Invoice: *invoice, Applied: true}
		return nil
	})
	if err != nil {
		return invoicedomain.ApplyResult{}, err
	}
	return result, nil
}

// nextStatus decides the state machine move for a freshly recorded
// transaction. It never mutates the invoice.
func (s *Service) nextStatus(invoice *invoicedomain.Invoice, txn invoicedomain.GatewayTransaction) (invoicedomain.InvoiceStatus, error) {
	switch txn.Kind {
	case gatewaydomain.KindPayment:
		switch txn.Outcome {
		case gatewaydomain.OutcomePending:
			// Initiation record; no lifecycle move.
			return invoice.Status, nil
		case gatewaydomain.OutcomeSuccess:
			if !invoicedomain.CanTransition(invoice.Status, invoicedomain.InvoiceStatusPaid) {
				return "", invoicedomain.ErrInvalidStateTransition
			}
			if txn.Amount != invoice.TotalAmount || !strings.EqualFold(txn.Currency, invoice.Currency) {
				return "", invoicedomain.ErrInvalidStateTransition
			}
			return invoicedomain.InvoiceStatusPaid, nil
		default:
			if !invoicedomain.CanTransition(invoice.Status, invoicedomain.InvoiceStatusFailed) {
				return "", invoicedomain.ErrInvalidStateTransition
			}
			return invoicedomain.InvoiceStatusFailed, nil
		}

	case gatewaydomain.KindRefund:
		if txn.Outcome != gatewaydomain.OutcomeSuccess {
			// Failed refund attempts are recorded for audit only.
			return invoice.Status, nil
		}
		if txn.Amount <= 0 || invoice.RefundedAmount+txn.Amount > invoice.TotalAmount {
			return "", invoicedomain.ErrInvalidRefundAmount
		}
		next := invoicedomain.InvoiceStatusPartiallyRefunded
		if invoice.RefundedAmount+txn.Amount == invoice.TotalAmount {
			next = invoicedomain.InvoiceStatusRefunded
		}
		if !invoicedomain.CanTransition(invoice.Status, next) {
			return "", invoicedomain.ErrInvalidStateTransition
		}
		return next, nil
	}

	return "", invoicedomain.ErrInvalidStateTransition
}

func (s *Service) Cancel(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if !invoicedomain.CanTransition(invoice.Status, invoicedomain.InvoiceStatusCancelled) {
			return invoicedomain.ErrInvalidStateTransition
		}

		invoice.Status = invoicedomain.InvoiceStatusCancelled
		invoice.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateState(ctx, tx, invoice); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return updated, nil
}

// computeTotals folds item amounts into invoice totals. Inclusive tax
// stays inside the subtotal; exclusive tax is added on top.
func computeTotals(ctx context.Context, items []invoicedomain.InvoiceItem, modeOf func(context.Context, string) taxdomain.TaxMode) (subtotal, tax, total int64) {
	for _, item := range items {
		subtotal += item.Amount
		tax += item.TaxAmount
		if modeOf(ctx, item.TaxClass) == taxdomain.TaxModeExclusive {
			total += item.Amount + item.TaxAmount
		} else {
			total += item.Amount
		}
	}
	return subtotal, tax, total
}

func (s *Service) taxModeOf(ctx context.Context, code string) taxdomain.TaxMode {
	class, err := s.taxes.ResolveClass(ctx, code)
	if err != nil || class == nil {
		return taxdomain.TaxModeInclusive
	}
	return class.TaxMode
}
