// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
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
	GetRateLimitPerMinute() int
}

// SchedulerConfig provides settings for the asynq delivery queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for the SMTP delivery channel.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification dispatcher.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetDeliveryMaxAttempts() int
	GetDeliveryTimeout() time.Duration
	GetRedeliverySchedule() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketLeadImages() string
	IsMinIOEnabled() bool
}

// LifecycleConfig provides lead lifecycle policy settings.
type LifecycleConfig interface {
	GetLeadRejectPolicy() string
}

// CommissionConfig provides commission policy settings.
type CommissionConfig interface {
	GetCommissionPolicyFile() string
	GetCommissionAgencyRateBps() int64
	GetCommissionSpotterShareBps() int64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string        `envconfig:"APP_ENV" default:"development"`
	HTTPAddr                  string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL               string        `envconfig:"DATABASE_URL"`
	MigrationsEnabled         bool          `envconfig:"MIGRATIONS_ENABLED" default:"true"`
	JWTAccessSecret           string        `envconfig:"JWT_ACCESS_SECRET"`
	CORSAllowAll              bool          `envconfig:"CORS_ALLOW_ALL" default:"false"`
	CORSOrigins               []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	CORSAllowCreds            bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	RateLimitPerMinute        int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	AppBaseURL                string        `envconfig:"APP_BASE_URL" default:"http://localhost:5173"`
	RedisURL                  string        `envconfig:"REDIS_URL"`
	RedisTLSInsecure          bool          `envconfig:"REDIS_TLS_INSECURE" default:"false"`
	AsynqQueueName            string        `envconfig:"ASYNQ_QUEUE" default:"notifications"`
	AsynqConcurrency          int           `envconfig:"ASYNQ_CONCURRENCY" default:"10"`
	DeliveryMaxAttempts       int           `envconfig:"DELIVERY_MAX_ATTEMPTS" default:"5"`
	DeliveryTimeout           time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"10s"`
	RedeliverySchedule        string        `envconfig:"REDELIVERY_SCHEDULE" default:"@every 5m"`
	EmailEnabled              bool          `envconfig:"EMAIL_ENABLED" default:"false"`
	SMTPHost                  string        `envconfig:"SMTP_HOST"`
	SMTPPort                  int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername              string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword              string        `envconfig:"SMTP_PASSWORD"`
	EmailFromName             string        `envconfig:"EMAIL_FROM_NAME" default:"Spotter Portal"`
	EmailFromAddress          string        `envconfig:"EMAIL_FROM_ADDRESS"`
	MinIOEndpoint             string        `envconfig:"MINIO_ENDPOINT"`
	MinIOAccessKey            string        `envconfig:"MINIO_ACCESS_KEY"`
	MinIOSecretKey            string        `envconfig:"MINIO_SECRET_KEY"`
	MinIOUseSSL               bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	MinIOMaxFileSize          int64         `envconfig:"MINIO_MAX_FILE_SIZE" default:"10485760"`
	MinioBucketLeadImages     string        `envconfig:"MINIO_BUCKET_LEAD_IMAGES" default:"lead-images"`
	LeadRejectPolicy          string        `envconfig:"LEAD_REJECT_POLICY" default:"close"`
	CommissionPolicyFile      string        `envconfig:"COMMISSION_POLICY_FILE"`
	CommissionAgencyRateBps   int64         `envconfig:"COMMISSION_AGENCY_RATE_BPS" default:"300"`
	CommissionSpotterShareBps int64         `envconfig:"COMMISSION_SPOTTER_SHARE_BPS" default:"1000"`
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string             { return c.AppBaseURL }
func (c *Config) GetDeliveryMaxAttempts() int       { return c.DeliveryMaxAttempts }
func (c *Config) GetDeliveryTimeout() time.Duration { return c.DeliveryTimeout }
func (c *Config) GetRedeliverySchedule() string     { return c.RedeliverySchedule }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string         { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string        { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string        { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool             { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64       { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketLeadImages() string { return c.MinioBucketLeadImages }
func (c *Config) IsMinIOEnabled() bool             { return c.MinIOEndpoint != "" }

// LifecycleConfig implementation
func (c *Config) GetLeadRejectPolicy() string { return c.LeadRejectPolicy }

// CommissionConfig implementation
func (c *Config) GetCommissionPolicyFile() string     { return c.CommissionPolicyFile }
func (c *Config) GetCommissionAgencyRateBps() int64   { return c.CommissionAgencyRateBps }
func (c *Config) GetCommissionSpotterShareBps() int64 { return c.CommissionSpotterShareBps }

// Load reads configuration from the environment (and a .env file when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if containsWildcard(c.CORSOrigins) {
		c.CORSAllowAll = true
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.EmailEnabled && (c.SMTPHost == "" || c.EmailFromAddress == "") {
		return fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
	}
	switch strings.ToLower(strings.TrimSpace(c.LeadRejectPolicy)) {
	case "close", "reopen":
		c.LeadRejectPolicy = strings.ToLower(strings.TrimSpace(c.LeadRejectPolicy))
	default:
		return fmt.Errorf("LEAD_REJECT_POLICY must be close or reopen, got %q", c.LeadRejectPolicy)
	}
	if c.DeliveryMaxAttempts < 1 {
		c.DeliveryMaxAttempts = 1
	}
	return nil
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == "*" {
			return true
		}
	}
	return false
}
