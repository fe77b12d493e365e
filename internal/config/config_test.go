package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/wsfe-client/internal/model"
)

const sample = `
environment: production
timeout: 15s
service_period_policy: default_today
ticket_cache_file: cache/tickets.yaml
ticket:
  service: wsfe
  generation_skew: 5m
  expiration_skew: 20m
credentials:
  ca_file: certs/afip-ca.pem
  ocsp: true
accounts:
  - id: acme
    cuit: "20123456789"
    key_file: keys/acme.key
    cert_file: /etc/wsfe/acme.crt
  - id: sandbox
    cuit: "30712345671"
    environment: test
    key_file: keys/sandbox.key
    cert_file: keys/sandbox.crt
server:
  port: 9090
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wsfe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sample)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.EnvironmentProduction, cfg.Env)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.GenerationSkew)
	assert.Equal(t, 20*time.Minute, cfg.ExpirationSkew)
	assert.Equal(t, model.ServicePeriodDefaultToday, cfg.PeriodPolicy)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Credentials.OCSP)
	assert.Equal(t, filepath.Join(dir, "certs/afip-ca.pem"), cfg.Credentials.CAFile)
	assert.Equal(t, filepath.Join(dir, "cache/tickets.yaml"), cfg.TicketCacheFile)

	acme, ok := cfg.Account("acme")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "keys/acme.key"), acme.KeyFile)
	assert.Equal(t, "/etc/wsfe/acme.crt", acme.CertFile)
	assert.Equal(t, model.EnvironmentProduction, cfg.AccountEnvironment(acme))

	sandbox, ok := cfg.Account("sandbox")
	require.True(t, ok)
	assert.Equal(t, model.EnvironmentTest, cfg.AccountEnvironment(sandbox))

	_, ok = cfg.Account("missing")
	assert.False(t, ok)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, sample)
	t.Setenv("WSFE_ENV", "homo")
	t.Setenv("WSFE_TIMEOUT", "45s")
	t.Setenv("WSFE_PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.EnvironmentTest, cfg.Env)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, model.EnvironmentTest, cfg.Env)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.GenerationSkew)
	assert.Equal(t, model.ServicePeriodStrict, cfg.PeriodPolicy)
	assert.Empty(t, cfg.Accounts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "accounts: [", "failed to parse"},
		{"bad timeout", "timeout: soon", "invalid timeout"},
		{"negative skew", "ticket:\n  service: wsfe\n  generation_skew: -1m\n  expiration_skew: 10m", "must be positive"},
		{"bad environment", "environment: staging", "environment"},
		{"bad policy", "service_period_policy: lenient", "service_period_policy"},
		{"duplicate account", "accounts:\n  - {id: a, key_file: k, cert_file: c}\n  - {id: a, key_file: k, cert_file: c}", "duplicate id"},
		{"account without files", "accounts:\n  - {id: a}", "key_file and cert_file are required"},
		{"bad port", "server:\n  port: 70000", "server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "explicit.yaml", ResolvePath("explicit.yaml"))

	t.Setenv("WSFE_CONFIG", "/etc/wsfe/config.yaml")
	assert.Equal(t, "/etc/wsfe/config.yaml", ResolvePath(""))
}
