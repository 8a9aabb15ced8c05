package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "0.0.0.0"
  port: 9090

log:
  level: debug
  redact_pii: false

mailersend:
  api_endpoint: "https://mailersend.test/v1"
  api_token: "ms-token"
  timeout_seconds: 45

listmonk:
  api_endpoint: "http://listmonk:9000"
  username: "api"
  password: "secret"
  max_retries: 4

dispatch:
  outgoing_cron: "*/5 * * * *"
  bulk_size: 250
  requests_per_minute: 60
  acquire_timeout_seconds: 30
  flush_on_shutdown: true

webhook:
  signing_secret: "whsec"
  enforce_signature: true

redis:
  url: "redis://localhost:6379/0"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())

	assert.Equal(t, "https://mailersend.test/v1", cfg.MailerSend.APIEndpoint)
	assert.Equal(t, "ms-token", cfg.MailerSend.APIToken)
	assert.Equal(t, 45*time.Second, cfg.MailerSend.Timeout())

	assert.Equal(t, "http://listmonk:9000", cfg.Listmonk.APIEndpoint)
	assert.Equal(t, 4, cfg.Listmonk.Retries())

	assert.Equal(t, "*/5 * * * *", cfg.Dispatch.OutgoingCron)
	assert.Equal(t, 250, cfg.Dispatch.BulkSize)
	assert.Equal(t, 60, cfg.Dispatch.RequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.AcquireTimeout())
	assert.True(t, cfg.Dispatch.FlushOnShutdown)

	assert.True(t, cfg.Webhook.EnforceSignature)
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
mailersend:
  api_token: "ms-token"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Redact())
	assert.Equal(t, ProviderMailerSend, cfg.Provider)
	assert.Equal(t, "https://api.mailersend.com/v1", cfg.MailerSend.APIEndpoint)
	assert.Equal(t, "http://localhost:9001", cfg.Listmonk.APIEndpoint)
	assert.Equal(t, "bridge", cfg.Listmonk.BounceSource)
	assert.Equal(t, "0 */1 * * *", cfg.Dispatch.OutgoingCron)
	assert.Equal(t, 500, cfg.Dispatch.BulkSize)
	assert.Equal(t, 10, cfg.Dispatch.RequestsPerMinute)
	assert.Equal(t, 120*time.Second, cfg.Dispatch.AcquireTimeout())
	assert.Equal(t, 2, cfg.Listmonk.Retries())
	assert.False(t, cfg.Dispatch.FlushOnShutdown)
	assert.False(t, cfg.Webhook.EnforceSignature)
}

func TestLoadExplicitZeroes(t *testing.T) {
	path := writeConfig(t, `
mailersend:
  api_token: "ms-token"
listmonk:
  username: "api"
  password: "secret"
  max_retries: 0
dispatch:
  acquire_timeout_seconds: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Listmonk.Retries())
	assert.Equal(t, time.Duration(0), cfg.Dispatch.AcquireTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeRetryAndWait(t *testing.T) {
	path := writeConfig(t, `
mailersend:
  api_token: "ms-token"
listmonk:
  username: "api"
  password: "secret"
  max_retries: -1
dispatch:
  acquire_timeout_seconds: -5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listmonk.max_retries must not be negative")
	assert.Contains(t, err.Error(), "dispatch.acquire_timeout_seconds must not be negative")
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
mailersend:
  api_token: "file-token"
`)

	t.Setenv("MAILERSEND_API_TOKEN", "env-token")
	t.Setenv("LISTMONK_API_USERNAME", "env-user")
	t.Setenv("LISTMONK_API_PASSWORD", "env-pass")
	t.Setenv("API_EMAIL_BULK_SIZE", "100")
	t.Setenv("API_BULK_REQ_PER_MIN", "20")
	t.Setenv("OUTGOING_CRON", "*/10 * * * *")
	t.Setenv("SIGNING_SECRET", "env-secret")
	t.Setenv("ARCHIVE_S3_BUCKET", "relay-archive")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.MailerSend.APIToken)
	assert.Equal(t, "env-user", cfg.Listmonk.Username)
	assert.Equal(t, "env-pass", cfg.Listmonk.Password)
	assert.Equal(t, 100, cfg.Dispatch.BulkSize)
	assert.Equal(t, 20, cfg.Dispatch.RequestsPerMinute)
	assert.Equal(t, "*/10 * * * *", cfg.Dispatch.OutgoingCron)
	assert.Equal(t, "env-secret", cfg.Webhook.SigningSecret)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "relay-archive", cfg.Archive.S3Bucket)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("PORT", "9100")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Dispatch.BulkSize)
}

func TestLoadFromEnvRejectsBadInteger(t *testing.T) {
	t.Setenv("API_EMAIL_BULK_SIZE", "lots")

	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_EMAIL_BULK_SIZE")
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		cfg.MailerSend.APIToken = "token"
		cfg.Listmonk.Username = "api"
		cfg.Listmonk.Password = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.MailerSend.APIToken = "" }, "mailersend.api_token"},
		{"ses needs no token", func(c *Config) { c.Provider = ProviderSES; c.MailerSend.APIToken = "" }, ""},
		{"unknown provider", func(c *Config) { c.Provider = "postmark" }, "unknown provider"},
		{"missing listmonk credentials", func(c *Config) { c.Listmonk.Password = "" }, "listmonk.username"},
		{"bad bulk size", func(c *Config) { c.Dispatch.BulkSize = -1 }, "bulk_size"},
		{"bad rate", func(c *Config) { c.Dispatch.RequestsPerMinute = -5 }, "requests_per_minute"},
		{"enforce without secret", func(c *Config) { c.Webhook.EnforceSignature = true }, "signing_secret"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true }, "s3_bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
