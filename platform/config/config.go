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
}

// JWTConfig provides JWT validation settings for middleware.
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

// RateLimitConfig provides limits for the public intake endpoints.
type RateLimitConfig interface {
	GetPublicRateLimitPerMinute() float64
	GetPublicRateLimitBurst() int
}

// SMTPConfig provides credentials for direct SMTP delivery.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	SMTPConfig
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SchedulerConfig provides Redis and asynq settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetOutboxRetention() time.Duration
	GetMaintenanceInterval() time.Duration
}

// LifecycleConfig provides settings for the lead lifecycle engine.
type LifecycleConfig interface {
	GetLifecycleOperationTimeout() time.Duration
}

// ScoringConfig provides assessment and application scoring thresholds.
type ScoringConfig interface {
	GetAssessmentHighPotentialThreshold() int
	GetApplicationStrongThreshold() int
	GetApplicationModerateThreshold() int
	GetApplicationCommitmentKeywords() []string
}

// FunnelConfig provides settings for the intake and acceptance flows.
type FunnelConfig interface {
	ScoringConfig
	GetProgramName() string
	GetPaymentBaseURL() string
	GetPaymentLinkTTL() time.Duration
}

// NotificationConfig provides settings for automated outreach.
type NotificationConfig interface {
	GetProgramName() string
	GetAutomatedOutreachStates() []string
	GetAdminNotificationEmail() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                              string
	HTTPAddr                         string
	DatabaseURL                      string
	JWTAccessSecret                  string
	CORSAllowAll                     bool
	CORSOrigins                      []string
	CORSAllowCreds                   bool
	PublicRateLimitPerMinute         float64
	PublicRateLimitBurst             int
	EmailEnabled                     bool
	EmailProvider                    string
	BrevoAPIKey                      string
	EmailFromName                    string
	EmailFromAddress                 string
	SMTPHost                         string
	SMTPPort                         int
	SMTPUsername                     string
	SMTPPassword                     string
	RedisURL                         string
	RedisTLSInsecure                 bool
	AsynqQueueName                   string
	AsynqConcurrency                 int
	OutboxRetention                  time.Duration
	MaintenanceInterval              time.Duration
	LifecycleOperationTimeout        time.Duration
	AssessmentHighPotentialThreshold int
	ApplicationStrongThreshold       int
	ApplicationModerateThreshold     int
	ApplicationCommitmentKeywords    []string
	ProgramName                      string
	PaymentBaseURL                   string
	PaymentLinkTTL                   time.Duration
	AutomatedOutreachStates          []string
	AdminNotificationEmail           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RateLimitConfig implementation
func (c *Config) GetPublicRateLimitPerMinute() float64 { return c.PublicRateLimitPerMinute }
func (c *Config) GetPublicRateLimitBurst() int         { return c.PublicRateLimitBurst }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                   { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool             { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string             { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int              { return c.AsynqConcurrency }
func (c *Config) GetOutboxRetention() time.Duration     { return c.OutboxRetention }
func (c *Config) GetMaintenanceInterval() time.Duration { return c.MaintenanceInterval }

// LifecycleConfig implementation
func (c *Config) GetLifecycleOperationTimeout() time.Duration { return c.LifecycleOperationTimeout }

// ScoringConfig implementation
func (c *Config) GetAssessmentHighPotentialThreshold() int { return c.AssessmentHighPotentialThreshold }
func (c *Config) GetApplicationStrongThreshold() int       { return c.ApplicationStrongThreshold }
func (c *Config) GetApplicationModerateThreshold() int     { return c.ApplicationModerateThreshold }
func (c *Config) GetApplicationCommitmentKeywords() []string {
	return c.ApplicationCommitmentKeywords
}

// FunnelConfig implementation
func (c *Config) GetProgramName() string           { return c.ProgramName }
func (c *Config) GetPaymentBaseURL() string        { return c.PaymentBaseURL }
func (c *Config) GetPaymentLinkTTL() time.Duration { return c.PaymentLinkTTL }

// NotificationConfig implementation
func (c *Config) GetAutomatedOutreachStates() []string { return c.AutomatedOutreachStates }
func (c *Config) GetAdminNotificationEmail() string    { return c.AdminNotificationEmail }

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                              getEnv("APP_ENV", "development"),
		HTTPAddr:                         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:                  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                     corsAllowAll,
		CORSOrigins:                      corsOrigins,
		CORSAllowCreds:                   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PublicRateLimitPerMinute:         mustFloat(getEnv("PUBLIC_RATE_LIMIT_PER_MINUTE", "20")),
		PublicRateLimitBurst:             mustInt(getEnv("PUBLIC_RATE_LIMIT_BURST", "10")),
		EmailEnabled:                     emailEnabled,
		EmailProvider:                    strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
		BrevoAPIKey:                      getEnv("BREVO_API_KEY", ""),
		EmailFromName:                    getEnv("EMAIL_FROM_NAME", "LPBA"),
		EmailFromAddress:                 getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:                         getEnv("SMTP_HOST", ""),
		SMTPPort:                         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:                     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                     getEnv("SMTP_PASSWORD", ""),
		RedisURL:                         getEnv("REDIS_URL", ""),
		RedisTLSInsecure:                 strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:                   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:                 mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		OutboxRetention:                  time.Duration(mustInt(getEnv("OUTBOX_RETENTION_DAYS", "14"))) * 24 * time.Hour,
		MaintenanceInterval:              mustDuration(getEnv("MAINTENANCE_INTERVAL", "5m")),
		LifecycleOperationTimeout:        mustDuration(getEnv("LIFECYCLE_OPERATION_TIMEOUT", "5s")),
		AssessmentHighPotentialThreshold: mustInt(getEnv("ASSESSMENT_HIGH_POTENTIAL_THRESHOLD", "10")),
		ApplicationStrongThreshold:       mustInt(getEnv("APPLICATION_STRONG_THRESHOLD", "8")),
		ApplicationModerateThreshold:     mustInt(getEnv("APPLICATION_MODERATE_THRESHOLD", "4")),
		ApplicationCommitmentKeywords:    splitCSV(strings.ToLower(getEnv("APPLICATION_COMMITMENT_KEYWORDS", "ready,budget,pay,yes"))),
		ProgramName:                      getEnv("PROGRAM_NAME", "LPBA"),
		PaymentBaseURL:                   strings.TrimRight(getEnv("PAYMENT_BASE_URL", "http://localhost:3000"), "/"),
		PaymentLinkTTL:                   mustDuration(getEnv("PAYMENT_LINK_TTL", "72h")),
		AutomatedOutreachStates:          splitCSV(strings.ToUpper(getEnv("AUTOMATED_OUTREACH_STATES", "NURTURING,ONLINE_CLIENT"))),
		AdminNotificationEmail:           strings.TrimSpace(getEnv("ADMIN_NOTIFICATION_EMAIL", "")),
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
	if c.EmailEnabled {
		if c.EmailFromAddress == "" {
			return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
		}
		switch c.EmailProvider {
		case "brevo":
			if c.BrevoAPIKey == "" {
				return fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
			}
		case "smtp":
			if c.SMTPHost == "" {
				return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
			}
		default:
			return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
		}
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.LifecycleOperationTimeout <= 0 {
		return fmt.Errorf("LIFECYCLE_OPERATION_TIMEOUT must be a positive duration")
	}
	if c.ApplicationModerateThreshold > c.ApplicationStrongThreshold {
		return fmt.Errorf("APPLICATION_MODERATE_THRESHOLD cannot exceed APPLICATION_STRONG_THRESHOLD")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be a positive duration")
	}
	if c.PaymentLinkTTL <= 0 {
		return fmt.Errorf("PAYMENT_LINK_TTL must be a positive duration")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
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
