package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
)

type createTaxClassRequest struct {
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	TaxMode     string   `json:"tax_mode"`
	Rate        *float64 `json:"rate"`
	Description *string  `json:"description"`
}

func (s *Server) CreateTaxClass(c *gin.Context) {
	var req createTaxClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxSvc.Create(c.Request.Context(), taxdomain.CreateRequest{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		TaxMode:     taxdomain.TaxMode(strings.ToLower(strings.TrimSpace(req.TaxMode))),
		Rate:        req.Rate,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTaxClasses(c *gin.Context) {
	var query struct {
		Code      string `form:"code"`
		IsEnabled string `form:"is_enabled"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isEnabled, err := parseOptionalBool(query.IsEnabled)
	if err != nil {
		AbortWithError(c, newValidationError("is_enabled", "invalid_is_enabled", "invalid is_enabled"))
		return
	}

	resp, err := s.taxSvc.List(c.Request.Context(), taxdomain.ListFilter{
		Code:      strings.ToUpper(strings.TrimSpace(query.Code)),
		IsEnabled: isEnabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateTaxClassRequest struct {
	Name        string   `json:"name"`
	TaxMode     string   `json:"tax_mode"`
	Rate        *float64 `json:"rate"`
	Description *string  `json:"description"`
	IsEnabled   *bool    `json:"is_enabled"`
}

func (s *Server) UpdateTaxClass(c *gin.Context) {
	var req updateTaxClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxSvc.Update(c.Request.Context(), taxdomain.UpdateRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Name:        strings.TrimSpace(req.Name),
		TaxMode:     taxdomain.TaxMode(strings.ToLower(strings.TrimSpace(req.TaxMode))),
		Rate:        req.Rate,
		Description: req.Description,
		IsEnabled:   req.IsEnabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
