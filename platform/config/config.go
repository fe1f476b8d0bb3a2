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

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the outbound SMS gateway.
type SMSConfig interface {
	GetSMSAPIURL() string
	GetSMSAPIToken() string
	GetSMSDefaultRegion() string
	IsSMSEnabled() bool
}

// CronConfig provides the shared secret guarding cron trigger endpoints.
type CronConfig interface {
	GetCronSecret() string
}

// SchedulerConfig provides settings for the asynq worker and run locks.
type SchedulerConfig interface {
	GetRedisURL() string
	GetSchedulerQueue() string
	GetSchedulerConcurrency() int
}

// ProvisioningConfig provides settings for the product provisioning API.
type ProvisioningConfig interface {
	GetProvisioningBaseURL() string
	GetProvisioningAPIKey() string
	IsProvisioningEnabled() bool
}

// WorkflowSyncConfig provides settings for the external workflow mirror.
type WorkflowSyncConfig interface {
	GetWorkflowSyncURL() string
	GetWorkflowSyncAPIKey() string
	IsWorkflowSyncEnabled() bool
}

// ScoringConfig provides settings for weekly activity scoring.
type ScoringConfig interface {
	GetScoringExpectationsPath() string
}

// ReminderConfig provides settings for the meeting reminder dispatcher.
type ReminderConfig interface {
	GetReminderSendRate() float64
	GetReminderSendBurst() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	EmailEnabled            bool
	EmailProvider           string
	BrevoAPIKey             string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	SMSAPIURL               string
	SMSAPIToken             string
	SMSDefaultRegion        string
	CronSecret              string
	RedisURL                string
	SchedulerQueue          string
	SchedulerConcurrency    int
	ProvisioningBaseURL     string
	ProvisioningAPIKey      string
	WorkflowSyncURL         string
	WorkflowSyncAPIKey      string
	ScoringExpectationsPath string
	ReminderSendRate        float64
	ReminderSendBurst       int
	FollowUpDelay           time.Duration
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

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSAPIURL() string        { return c.SMSAPIURL }
func (c *Config) GetSMSAPIToken() string      { return c.SMSAPIToken }
func (c *Config) GetSMSDefaultRegion() string { return c.SMSDefaultRegion }
func (c *Config) IsSMSEnabled() bool          { return c.SMSAPIURL != "" && c.SMSAPIToken != "" }

// CronConfig implementation
func (c *Config) GetCronSecret() string { return c.CronSecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetSchedulerQueue() string   { return c.SchedulerQueue }
func (c *Config) GetSchedulerConcurrency() int { return c.SchedulerConcurrency }

// ProvisioningConfig implementation
func (c *Config) GetProvisioningBaseURL() string { return c.ProvisioningBaseURL }
func (c *Config) GetProvisioningAPIKey() string  { return c.ProvisioningAPIKey }
func (c *Config) IsProvisioningEnabled() bool    { return c.ProvisioningBaseURL != "" }

// WorkflowSyncConfig implementation
func (c *Config) GetWorkflowSyncURL() string    { return c.WorkflowSyncURL }
func (c *Config) GetWorkflowSyncAPIKey() string { return c.WorkflowSyncAPIKey }
func (c *Config) IsWorkflowSyncEnabled() bool   { return c.WorkflowSyncURL != "" }

// ScoringConfig implementation
func (c *Config) GetScoringExpectationsPath() string { return c.ScoringExpectationsPath }

// ReminderConfig implementation
func (c *Config) GetReminderSendRate() float64 { return c.ReminderSendRate }
func (c *Config) GetReminderSendBurst() int    { return c.ReminderSendBurst }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailProvider := strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo"))
	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		EmailEnabled:            emailEnabled && (brevoAPIKey != "" || smtpHost != ""),
		EmailProvider:           emailProvider,
		BrevoAPIKey:             brevoAPIKey,
		SMTPHost:                smtpHost,
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Sales Ops"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSAPIURL:               getEnv("SMS_API_URL", ""),
		SMSAPIToken:             getEnv("SMS_API_TOKEN", ""),
		SMSDefaultRegion:        getEnv("SMS_DEFAULT_REGION", "US"),
		CronSecret:              getEnv("CRON_SECRET", ""),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SchedulerQueue:          getEnv("SCHEDULER_QUEUE", "default"),
		SchedulerConcurrency:    mustInt(getEnv("SCHEDULER_CONCURRENCY", "10")),
		ProvisioningBaseURL:     getEnv("PROVISIONING_BASE_URL", ""),
		ProvisioningAPIKey:      getEnv("PROVISIONING_API_KEY", ""),
		WorkflowSyncURL:         getEnv("WORKFLOW_SYNC_URL", ""),
		WorkflowSyncAPIKey:      getEnv("WORKFLOW_SYNC_API_KEY", ""),
		ScoringExpectationsPath: getEnv("SCORING_EXPECTATIONS_PATH", "scoring.yaml"),
		ReminderSendRate:        mustFloat(getEnv("REMINDER_SEND_RATE", "5")),
		ReminderSendBurst:       mustInt(getEnv("REMINDER_SEND_BURST", "10")),
		FollowUpDelay:           mustDuration(getEnv("FOLLOW_UP_DELAY", "24h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if emailProvider != "brevo" && emailProvider != "smtp" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be brevo or smtp, got %q", emailProvider)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
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
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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
