package whatsapp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	maxWebhookBody  = 1 << 20
)

// SignatureRequired verifies the HMAC-SHA256 signature GOWA puts on webhook bodies
// ("sha256=<hex>"). The body is restored for the handler. An empty secret rejects
// every request.
func SignatureRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "webhook secret not configured"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		provided := strings.TrimPrefix(strings.TrimSpace(c.GetHeader(signatureHeader)), "sha256=")
		got, err := hex.DecodeString(provided)
		if err != nil || len(got) == 0 || !hmac.Equal(got, sign(secret, body)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
