package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server looks for its YAML file when CONFIG_PATH
// is not set.
const DefaultPath = "config/config.yaml"

// Provider names accepted in Config.Provider.
const (
	ProviderMailerSend = "mailersend"
	ProviderSES        = "ses"
)

// Config holds all configuration for the relay
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Provider   string           `yaml:"provider"`
	MailerSend MailerSendConfig `yaml:"mailersend"`
	SES        SESConfig        `yaml:"ses"`
	Listmonk   ListmonkConfig   `yaml:"listmonk"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// MailerSendConfig holds MailerSend API configuration
type MailerSendConfig struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailerSendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES v2 configuration for the alternate transport
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// ListmonkConfig holds listmonk API configuration
type ListmonkConfig struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     *int   `yaml:"max_retries"`
	BounceSource   string `yaml:"bounce_source"`
}

// Timeout returns the configured timeout as a duration
func (c ListmonkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Retries returns how many times a failed listmonk call is retried
// (default 2). An explicit 0 disables retries.
func (c ListmonkConfig) Retries() int {
	if c.MaxRetries == nil {
		return 2
	}
	return *c.MaxRetries
}

// DispatchConfig holds the outgoing pipeline settings
type DispatchConfig struct {
	OutgoingCron          string `yaml:"outgoing_cron"`
	BulkSize              int    `yaml:"bulk_size"`
	RequestsPerMinute     int    `yaml:"requests_per_minute"`
	AcquireTimeoutSeconds *int   `yaml:"acquire_timeout_seconds"`
	FlushOnShutdown       bool   `yaml:"flush_on_shutdown"`
}

// AcquireTimeout returns how long a chunk waits for a rate limiter slot
// (default 120s). An explicit 0 sends without waiting when the window is full.
func (c DispatchConfig) AcquireTimeout() time.Duration {
	if c.AcquireTimeoutSeconds == nil {
		return 120 * time.Second
	}
	return time.Duration(*c.AcquireTimeoutSeconds) * time.Second
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	SigningSecret    string `yaml:"signing_secret"`
	EnforceSignature bool   `yaml:"enforce_signature"`
}

// RedisConfig enables the shared rate limiter when URL is set
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// DatabaseConfig enables the delivery-event journal when URL is set
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether a database URL is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// ArchiveConfig holds the S3 archive for failed chunks
type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain
	Prefix     string `yaml:"prefix"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderMailerSend
	}
	if cfg.MailerSend.APIEndpoint == "" {
		cfg.MailerSend.APIEndpoint = "https://api.mailersend.com/v1"
	}
	if cfg.MailerSend.TimeoutSeconds == 0 {
		cfg.MailerSend.TimeoutSeconds = 60
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Listmonk.APIEndpoint == "" {
		cfg.Listmonk.APIEndpoint = "http://localhost:9001"
	}
	if cfg.Listmonk.TimeoutSeconds == 0 {
		cfg.Listmonk.TimeoutSeconds = 30
	}
	if cfg.Listmonk.BounceSource == "" {
		cfg.Listmonk.BounceSource = "bridge"
	}
	if cfg.Dispatch.OutgoingCron == "" {
		cfg.Dispatch.OutgoingCron = "0 */1 * * *"
	}
	if cfg.Dispatch.BulkSize == 0 {
		cfg.Dispatch.BulkSize = 500
	}
	if cfg.Dispatch.RequestsPerMinute == 0 {
		cfg.Dispatch.RequestsPerMinute = 10
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "failed-chunks"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in production. A missing YAML file is not
// an error: the relay can run from the environment alone.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("HOST", &cfg.Server.Host)
	if err := setInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("PROVIDER", &cfg.Provider)

	setString("MAILERSEND_API_ENDPOINT", &cfg.MailerSend.APIEndpoint)
	setString("MAILERSEND_API_TOKEN", &cfg.MailerSend.APIToken)

	setString("AWS_SES_REGION", &cfg.SES.Region)
	setString("AWS_SES_ACCESS_KEY", &cfg.SES.AccessKey)
	setString("AWS_SES_SECRET_KEY", &cfg.SES.SecretKey)

	setString("LISTMONK_API_ENDPOINT", &cfg.Listmonk.APIEndpoint)
	setString("LISTMONK_API_USERNAME", &cfg.Listmonk.Username)
	setString("LISTMONK_API_PASSWORD", &cfg.Listmonk.Password)

	setString("OUTGOING_CRON", &cfg.Dispatch.OutgoingCron)
	if err := setInt("API_EMAIL_BULK_SIZE", &cfg.Dispatch.BulkSize); err != nil {
		return err
	}
	if err := setInt("API_BULK_REQ_PER_MIN", &cfg.Dispatch.RequestsPerMinute); err != nil {
		return err
	}

	setString("SIGNING_SECRET", &cfg.Webhook.SigningSecret)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("DATABASE_URL", &cfg.Database.URL)

	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		cfg.Archive.Enabled = true
	}
	return nil
}

// Validate reports configuration that would make the relay unusable.
func (cfg *Config) Validate() error {
	var problems []string

	switch cfg.Provider {
	case ProviderMailerSend:
		if cfg.MailerSend.APIToken == "" {
			problems = append(problems, "mailersend.api_token is required")
		}
	case ProviderSES:
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
	if cfg.Listmonk.Username == "" || cfg.Listmonk.Password == "" {
		problems = append(problems, "listmonk.username and listmonk.password are required")
	}
	if cfg.Dispatch.BulkSize <= 0 {
		problems = append(problems, "dispatch.bulk_size must be positive")
	}
	if cfg.Dispatch.RequestsPerMinute <= 0 {
		problems = append(problems, "dispatch.requests_per_minute must be positive")
	}
	if cfg.Dispatch.AcquireTimeoutSeconds != nil && *cfg.Dispatch.AcquireTimeoutSeconds < 0 {
		problems = append(problems, "dispatch.acquire_timeout_seconds must not be negative")
	}
	if cfg.Listmonk.MaxRetries != nil && *cfg.Listmonk.MaxRetries < 0 {
		problems = append(problems, "listmonk.max_retries must not be negative")
	}
	if cfg.Webhook.EnforceSignature && cfg.Webhook.SigningSecret == "" {
		problems = append(problems, "webhook.enforce_signature requires webhook.signing_secret")
	}
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket == "" {
		problems = append(problems, "archive.s3_bucket is required when the archive is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
