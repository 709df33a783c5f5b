package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("SALON_ADMIN_KEY", "secret-key")

	yamlContent := `
database:
  path: "test.db"
api:
  auth:
    enabled: true
    api_keys:
      - key: "${SALON_ADMIN_KEY}"
        name: "admin"
booking:
  max_advance_days: 60
  rate_limit_count: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.Database.Path)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "secret-key", cfg.API.Auth.APIKeys[0].Key)
	assert.Equal(t, 60, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, 3600, cfg.Booking.RateLimitWindow)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "negative advance days",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{MaxAdvanceDays: -1},
			},
			wantErr: true,
		},
		{
			name: "backup without storage path",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Backup:   BackupConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "auth without keys",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API:      APIConfig{Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "/media", cfg.Media.URLPrefix)
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 60, cfg.Catalog.CacheTTL)
	assert.Zero(t, cfg.Booking.RateLimitWindow)
	assert.Zero(t, cfg.Monitoring.PrometheusPort)
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		auth    APIAuthConfig
		wantErr bool
	}{
		{
			name:    "disabled",
			auth:    APIAuthConfig{},
			wantErr: false,
		},
		{
			name: "valid keys",
			auth: APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{
				{Key: "a", Name: "one"},
				{Key: "b", Name: "two"},
			}},
			wantErr: false,
		},
		{
			name: "duplicate key",
			auth: APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{
				{Key: "a", Name: "one"},
				{Key: "a", Name: "two"},
			}},
			wantErr: true,
		},
		{
			name:    "empty key",
			auth:    APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{{Key: " ", Name: "one"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeys(tt.auth)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "::1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.True(t, prefixes[0].Contains(netip.MustParseAddr("10.2.3.4")))
	assert.Equal(t, 32, prefixes[1].Bits())
	assert.Equal(t, 128, prefixes[2].Bits())

	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)

	cfg := &Config{Database: DatabaseConfig{Path: "salon.db"}}
	cfg.API.RateLimit.TrustedProxies = []string{"10.0.0.0/33"}
	assert.Error(t, cfg.Validate())
}
