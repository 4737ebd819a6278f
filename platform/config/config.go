// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
}

// JWTConfig provides JWT validation settings for the admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis and asynq settings for the turn queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPendingSweepInterval() time.Duration
	GetMessageRetention() time.Duration
}

// LockConfig provides settings for per-conversation mutual exclusion.
type LockConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetConversationLockTTL() time.Duration
	GetConversationLockWait() time.Duration
}

// AgentConfig provides settings for the SDR agent and its language model.
type AgentConfig interface {
	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	GetOracleTimeout() time.Duration
	GetAgentAPIKey() string
	GetHistoryLimit() int
}

// WhatsAppConfig provides settings for the GOWA WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetWhatsAppWebhookSecret() string
	GetPhoneDefaultRegion() string
}

// EmailConfig provides SMTP settings for handoff alerts.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	DatabaseMaxConns      int
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	PendingSweepInterval  time.Duration
	MessageRetention      time.Duration
	ConversationLockTTL   time.Duration
	ConversationLockWait  time.Duration
	LLMAPIKey             string
	LLMBaseURL            string
	LLMModel              string
	OracleTimeout         time.Duration
	AgentAPIKey           string
	HistoryLimit          int
	WhatsAppURL           string
	WhatsAppKey           string
	WhatsAppDeviceID      string
	WhatsAppWebhookSecret string
	PhoneDefaultRegion    string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetPendingSweepInterval() time.Duration { return c.PendingSweepInterval }
func (c *Config) GetMessageRetention() time.Duration     { return c.MessageRetention }

// LockConfig implementation
func (c *Config) GetConversationLockTTL() time.Duration  { return c.ConversationLockTTL }
func (c *Config) GetConversationLockWait() time.Duration { return c.ConversationLockWait }

// AgentConfig implementation
func (c *Config) GetLLMAPIKey() string            { return c.LLMAPIKey }
func (c *Config) GetLLMBaseURL() string           { return c.LLMBaseURL }
func (c *Config) GetLLMModel() string             { return c.LLMModel }
func (c *Config) GetOracleTimeout() time.Duration { return c.OracleTimeout }
func (c *Config) GetAgentAPIKey() string          { return c.AgentAPIKey }
func (c *Config) GetHistoryLimit() int            { return c.HistoryLimit }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string           { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string           { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string      { return c.WhatsAppDeviceID }
func (c *Config) GetWhatsAppWebhookSecret() string { return c.WhatsAppWebhookSecret }
func (c *Config) GetPhoneDefaultRegion() string    { return c.PhoneDefaultRegion }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.SMTPHost != "" && c.EmailFromAddress != "" }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:      mustInt(getEnv("DATABASE_MAX_CONNS", "20"), 20),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "sdr"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10"), 10),
		PendingSweepInterval:  mustDuration(getEnv("PENDING_SWEEP_INTERVAL", "1m"), time.Minute),
		MessageRetention:      mustDuration(getEnv("MESSAGE_RETENTION", "2160h"), 90*24*time.Hour),
		ConversationLockTTL:   mustDuration(getEnv("CONVERSATION_LOCK_TTL", "60s"), time.Minute),
		ConversationLockWait:  mustDuration(getEnv("CONVERSATION_LOCK_WAIT", "10s"), 10*time.Second),
		LLMAPIKey:             getEnv("LLM_API_KEY", ""),
		LLMBaseURL:            getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:              getEnv("LLM_MODEL", "gpt-4o-mini"),
		OracleTimeout:         mustDuration(getEnv("ORACLE_TIMEOUT", "20s"), 20*time.Second),
		AgentAPIKey:           getEnv("AGENT_API_KEY", ""),
		HistoryLimit:          mustInt(getEnv("HISTORY_LIMIT", "30"), 30),
		WhatsAppURL:           getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:           getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:      getEnv("WHATSAPP_DEVICE_ID", ""),
		WhatsAppWebhookSecret: getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		PhoneDefaultRegion:    getEnv("PHONE_DEFAULT_REGION", "BR"),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "SDR Agent"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.AgentAPIKey == "" {
		return fmt.Errorf("AGENT_API_KEY is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}
	if c.ConversationLockTTL <= c.OracleTimeout {
		return fmt.Errorf("CONVERSATION_LOCK_TTL must exceed ORACLE_TIMEOUT")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || result <= 0 {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
