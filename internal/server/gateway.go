package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
)

type upsertGatewayConfigRequest struct {
	Config map[string]any `json:"config"`
}

func (s *Server) UpsertGatewayConfig(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if !providerKnown(s.gateways.Providers(), provider) {
		AbortWithError(c, gatewaydomain.ErrProviderNotFound)
		return
	}

	var req upsertGatewayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Config) == 0 {
		AbortWithError(c, newValidationError("config", "invalid_config", "config is required"))
		return
	}

	if err := s.gatewayConfigSvc.Upsert(c.Request.Context(), provider, req.Config); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"provider": provider, "configured": true}})
}

func (s *Server) ListGateways(c *gin.Context) {
	statuses, err := s.gatewayConfigSvc.List(c.Request.Context(), s.gateways.Providers())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}

type setGatewayStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) SetGatewayStatus(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))

	var req setGatewayStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.gatewayConfigSvc.SetActive(c.Request.Context(), provider, *req.IsActive); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"provider": provider, "is_active": *req.IsActive}})
}

func providerKnown(known []string, provider string) bool {
	for _, name := range known {
		if name == provider {
			return true
		}
	}
	return false
}
