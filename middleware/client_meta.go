package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

const maxUserAgent = 512

// ClientMetaFrom captures the signer's IP and user agent for the signature
// audit. The user agent is truncated to keep audit rows bounded.
func ClientMetaFrom(c *gin.Context) service.ClientMeta {
	ua := c.Request.UserAgent()
	if len(ua) > maxUserAgent {
		ua = ua[:maxUserAgent]
	}
	return service.ClientMeta{IP: c.ClientIP(), UserAgent: ua}
}
