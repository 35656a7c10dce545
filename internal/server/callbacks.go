package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleCallback receives asynchronous notifications from payment
// providers (webhooks, IPNs, return redirects with payload). The body
// is passed through untouched so the adapter can verify the provider
// signature against the exact bytes.
func (s *Server) HandleCallback(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))

	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ack, err := s.orchestrator.HandleCallback(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(ack.Status, ack.ContentType, []byte(ack.Body))
}
