// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// ContextOperatorIDKey is the gin context key for the authenticated operator ID.
	ContextOperatorIDKey = "operatorID"
	// ContextRolesKey is the gin context key for the operator's roles.
	ContextRolesKey = "roles"

	// RequestIDHeader carries the request id in and out of the service.
	RequestIDHeader = "X-Request-ID"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// RequestID assigns a request id to every request and stores it on the request context
// under logger.RequestIDKey.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		log.WithContext(c.Request.Context()).
			HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")

		// Only add HSTS in production
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// IPRateLimiter manages per-IP rate limiters.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := i.getLimiter(ip)

		if !limiter.Allow() {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// NewIngressRateLimiter creates the limiter shared by the machine-to-machine
// endpoints (agent process and WhatsApp webhook): 10 requests per second, burst of 30.
func NewIngressRateLimiter(log *logger.Logger) *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(10), 30, log)
}

// SharedSecretRequired returns middleware that compares the given header against
// the configured secret in constant time. An empty secret rejects every request.
func SharedSecretRequired(header, secret string) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(secret))
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(header))
		if secret == "" || provided == "" {
			abortUnauthorized(c, "missing "+strings.ToLower(header))
			return
		}
		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
			abortUnauthorized(c, "invalid "+strings.ToLower(header))
			return
		}
		c.Next()
	}
}

// AuthRequired returns middleware that validates JWT access tokens issued to operators.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		claims, err := parseAccessClaims(rawToken, cfg)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		operatorID, err := parseOperatorID(claims)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextOperatorIDKey, operatorID)
		c.Set(ContextRolesKey, extractRoles(claims["roles"]))
		c.Next()
	}
}

// RequireRole returns middleware that checks if the operator has the specified role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetIdentity(c).HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func extractRoles(value interface{}) []string {
	roles := make([]string, 0)
	if value == nil {
		return roles
	}

	switch typed := value.(type) {
	case []string:
		return append(roles, typed...)
	case []interface{}:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				roles = append(roles, text)
			}
		}
	}

	return roles
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

func parseAccessClaims(rawToken string, cfg config.JWTConfig) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errInvalidToken)
	}

	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return nil, errors.New(errInvalidToken)
	}

	return claims, nil
}

func parseOperatorID(claims jwt.MapClaims) (uuid.UUID, error) {
	subject, _ := claims["sub"].(string)
	return uuid.Parse(subject)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
