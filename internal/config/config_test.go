package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "crm-sync", Env: "development", ReadTimeout: 15, ShutdownTimeout: 10},
		Teamleader: TeamleaderConfig{
			Provider:     "teamleader",
			BaseURL:      "https://api.focus.teamleader.eu",
			AuthURL:      "https://focus.teamleader.eu/oauth2/authorize",
			TokenURL:     "https://focus.teamleader.eu/oauth2/access_token",
			RedirectURI:  "https://crm.example.com/redirect/teamleader",
			ClientID:     "client",
			ClientSecret: "secret",
			Timeout:      30,
			ExpirySkew:   60,
			Retry:        RetryConfig{Attempts: 2, BaseDelay: 200},
		},
	}
}

func TestNormalizeConvertsUnits(t *testing.T) {
	cfg := validConfig()
	cfg.normalize()

	assert.Equal(t, 15*time.Second, cfg.App.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Teamleader.Timeout)
	assert.Equal(t, time.Minute, cfg.Teamleader.ExpirySkew)
	assert.Equal(t, 200*time.Millisecond, cfg.Teamleader.Retry.BaseDelay)
	assert.Equal(t, 50, cfg.Sync.PageSize)
}

func TestNormalizeClampsRetryAttempts(t *testing.T) {
	cfg := validConfig()
	cfg.Teamleader.Retry.Attempts = 0
	cfg.normalize()

	assert.Equal(t, 1, cfg.Teamleader.Retry.Attempts)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Teamleader.ClientSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ClientSecret")

	cfg = validConfig()
	cfg.Teamleader.TokenURL = "not a url"
	require.Error(t, cfg.Validate())
}

func TestLeaseTTL(t *testing.T) {
	assert.Equal(t, time.Hour, SyncConfig{}.LeaseTTL())
	assert.Equal(t, 90*time.Second, SyncConfig{LeaseTTLSeconds: 90}.LeaseTTL())
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.App.Env = "production"
	assert.True(t, cfg.IsProduction())
}

func TestNewConfigReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm-sync.yaml")
	yaml := `
app:
  port: 9090
teamleader:
  base_url: https://api.focus.teamleader.eu
  auth_url: https://focus.teamleader.eu/oauth2/authorize
  token_url: https://focus.teamleader.eu/oauth2/access_token
  redirect_uri: https://crm.example.com/redirect/teamleader
  client_id: client
  client_secret: secret
sync:
  page_size: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "dev", cfg.App.Version)
	assert.Equal(t, time.Minute, cfg.App.IdleTimeout)
	assert.Equal(t, "teamleader", cfg.Teamleader.Provider)
	assert.Equal(t, 30*time.Second, cfg.Teamleader.Timeout)
	assert.Equal(t, 20, cfg.Sync.PageSize)
	assert.True(t, cfg.Sync.TestConnection)
}

func TestNewConfigMissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := NewConfig()
	require.Error(t, err)
}
