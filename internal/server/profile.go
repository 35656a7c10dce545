package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	profiledomain "github.com/responsiv/pay/internal/profile/domain"
)

type paymentDataRequest struct {
	Token      string `json:"token"`
	CardNumber string `json:"card_number"`
	CVV        string `json:"cvv"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	HolderName string `json:"holder_name"`
}

func (r paymentDataRequest) toDomain() gatewaydomain.PaymentData {
	return gatewaydomain.PaymentData{
		Token:      strings.TrimSpace(r.Token),
		CardNumber: strings.TrimSpace(r.CardNumber),
		CVV:        strings.TrimSpace(r.CVV),
		ExpMonth:   r.ExpMonth,
		ExpYear:    r.ExpYear,
		HolderName: strings.TrimSpace(r.HolderName),
	}
}

type createProfileRequest struct {
	Provider string `json:"provider"`
	paymentDataRequest
}

func (s *Server) CreateProfile(c *gin.Context) {
	customerID, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_customer_id", "invalid customer id"))
		return
	}

	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.profileSvc.Create(c.Request.Context(), customerID, profiledomain.CreateProfileRequest{
		Provider: strings.ToLower(strings.TrimSpace(req.Provider)),
		Data:     req.toDomain(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomerProfiles(c *gin.Context) {
	customerID, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_customer_id", "invalid customer id"))
		return
	}

	resp, err := s.profileSvc.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ProfileFormFields(c *gin.Context) {
	profileID, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_profile_id", "invalid profile id"))
		return
	}

	fields, err := s.profileSvc.FormFields(c.Request.Context(), profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": fields})
}

func (s *Server) UpdateProfile(c *gin.Context) {
	callerID, err := callerCustomerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	profileID, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_profile_id", "invalid profile id"))
		return
	}

	var req paymentDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.profileSvc.Update(c.Request.Context(), callerID, profileID, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProfile(c *gin.Context) {
	callerID, err := callerCustomerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	profileID, err := parsePathID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_profile_id", "invalid profile id"))
		return
	}

	if err := s.profileSvc.Delete(c.Request.Context(), callerID, profileID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

// callerCustomerID identifies the acting customer on profile
// mutations. Ownership is enforced in the service layer.
func callerCustomerID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader("X-Customer-Id"))
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}
