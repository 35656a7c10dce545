package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/responsiv/pay/internal/customer/domain"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	"github.com/responsiv/pay/internal/orchestrator"
	"github.com/responsiv/pay/internal/providers/pdf"
	"github.com/responsiv/pay/pkg/db/pagination"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status      string `form:"status"`
		CustomerID  string `form:"customer_id"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}

	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
		Status:      invoicedomain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		CustomerID:  strings.TrimSpace(query.CustomerID),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InitiatePayment(c *gin.Context) {
	var req orchestrator.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	instruction, err := s.orchestrator.InitiatePayment(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": instruction})
}

type refundInvoiceRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) RefundInvoice(c *gin.Context) {
	var req refundInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orchestrator.Refund(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.orchestrator.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type chargeProfileRequest struct {
	ProfileID string `json:"profile_id"`
}

func (s *Server) ChargeInvoiceProfile(c *gin.Context) {
	var req chargeProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		AbortWithError(c, newValidationError("profile_id", "invalid_profile_id", "invalid profile_id"))
		return
	}

	resp, err := s.orchestrator.ChargeProfile(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.ProfileID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type settleOfflineRequest struct {
	Reference string `json:"reference"`
}

func (s *Server) SettleInvoiceOffline(c *gin.Context) {
	var req settleOfflineRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orchestrator.SettleOffline(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Reference))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InvoiceReceiptPDF(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	switch detail.Invoice.Status {
	case invoicedomain.InvoiceStatusPaid,
		invoicedomain.InvoiceStatusPartiallyRefunded,
		invoicedomain.InvoiceStatusRefunded:
	default:
		AbortWithError(c, invoicedomain.ErrNotPaid)
		return
	}

	cust, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: detail.Invoice.CustomerID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.receipts.GenerateReceipt(c.Request.Context(), buildReceiptData(s.cfg.AppName, detail, cust.Name, cust.Email))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="receipt-`+detail.Invoice.ID.String()+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}

func buildReceiptData(merchant string, detail invoicedomain.InvoiceDetail, billToName, billToEmail string) pdf.ReceiptData {
	inv := detail.Invoice

	paidAt := time.Now().UTC()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}

	items := make([]pdf.ReceiptItem, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, pdf.ReceiptItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   gatewaydomain.FormatAmount(item.UnitAmount),
			Amount:      gatewaydomain.FormatAmount(item.Amount),
		})
	}

	return pdf.ReceiptData{
		MerchantName:  merchant,
		InvoiceNumber: inv.ID.String(),
		DatePaid:      paidAt.Format("Jan 2, 2006"),
		Provider:      inv.Provider,
		BillToName:    billToName,
		BillToEmail:   billToEmail,
		Items:         items,
		Currency:      inv.Currency,
		Subtotal:      gatewaydomain.FormatAmount(inv.SubtotalAmount),
		Tax:           gatewaydomain.FormatAmount(inv.TaxAmount),
		Total:         gatewaydomain.FormatAmount(inv.TotalAmount),
	}
}
