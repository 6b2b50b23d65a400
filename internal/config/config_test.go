package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(filepath.Join("testdata", "valid_config.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		cfg := validConfig(t)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, "escrow_db", cfg.Database.Database)
		assert.Equal(t, "marketplace_events", cfg.RabbitMQ.Exchange.Name)
		assert.Equal(t, "topic", cfg.RabbitMQ.Exchange.Type)
		assert.Equal(t, "marketplace-custody", cfg.Ledger.CustodyAccount)
		assert.Equal(t, "http://localhost:9090", cfg.Ledger.NativeURL)
		require.Len(t, cfg.Ledger.Tokens, 1)
		assert.Equal(t, "http://localhost:9091", cfg.Ledger.Tokens[0].URL)
		assert.Equal(t, 168*time.Hour, cfg.Escrow.GracePeriod)
		assert.Equal(t, "marketplace-admin", cfg.Escrow.Administrator)
		assert.Equal(t, "marketplace-arbiter", cfg.Escrow.DefaultResolver)
		assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
		assert.Equal(t, 4, cfg.Sweeper.Concurrency)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "does_not_exist.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "malformed.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "server port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "server port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host is required",
		},
		{
			name:    "invalid database port",
			mutate:  func(c *Config) { c.Database.Port = -1 },
			wantErr: "invalid database port",
		},
		{
			name:    "missing database name",
			mutate:  func(c *Config) { c.Database.Database = "" },
			wantErr: "database name is required",
		},
		{
			name:    "missing rabbitmq host",
			mutate:  func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr: "rabbitmq host is required",
		},
		{
			name:    "missing exchange name",
			mutate:  func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr: "rabbitmq exchange name is required",
		},
		{
			name:    "missing native ledger url",
			mutate:  func(c *Config) { c.Ledger.NativeURL = "" },
			wantErr: "ledger native_url is required",
		},
		{
			name:    "missing custody account",
			mutate:  func(c *Config) { c.Ledger.CustodyAccount = "" },
			wantErr: "ledger custody_account is required",
		},
		{
			name:    "token entry without url",
			mutate:  func(c *Config) { c.Ledger.Tokens[0].URL = "" },
			wantErr: "ledger tokens entries require both asset and url",
		},
		{
			name:    "missing administrator",
			mutate:  func(c *Config) { c.Escrow.Administrator = "" },
			wantErr: "escrow administrator is required",
		},
		{
			name:    "negative grace period",
			mutate:  func(c *Config) { c.Escrow.GracePeriod = -time.Hour },
			wantErr: "escrow grace_period must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSweeperConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "server port not required for the sweeper",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Sweeper.Interval = 0 },
			wantErr: "sweeper interval must be greater than 0",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Sweeper.Concurrency = 0 },
			wantErr: "sweeper concurrency must be greater than 0",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Sweeper.BatchSize = 0 },
			wantErr: "sweeper batch_size must be greater than 0",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Sweeper.ShutdownTimeout = 0 },
			wantErr: "sweeper shutdown_timeout must be greater than 0",
		},
		{
			name:    "missing actor",
			mutate:  func(c *Config) { c.Sweeper.Actor = "" },
			wantErr: "sweeper actor identity is required",
		},
		{
			name:    "shared validation still applies",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateSweeperConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
