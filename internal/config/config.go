package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Escrow   EscrowConfig   `yaml:"escrow"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds connection and exchange configuration for the
// notification stream. The marketplace only publishes; queues belong to the
// external indexers consuming it.
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// TokenLedgerConfig binds a token asset handle to its ledger service URL.
type TokenLedgerConfig struct {
	Asset string `yaml:"asset"`
	URL   string `yaml:"url"`
}

// LedgerConfig holds the external asset-ledger endpoints and the custody
// account deposits are held under.
type LedgerConfig struct {
	CustodyAccount string              `yaml:"custody_account"`
	NativeURL      string              `yaml:"native_url"`
	RequestTimeout time.Duration       `yaml:"request_timeout"`
	Tokens         []TokenLedgerConfig `yaml:"tokens"`
}

// EscrowConfig holds lifecycle tunables and the bootstrap identities.
type EscrowConfig struct {
	GracePeriod       time.Duration `yaml:"grace_period"`
	MaxDeadlineWindow time.Duration `yaml:"max_deadline_window"`
	Administrator     string        `yaml:"administrator"`
	DefaultResolver   string        `yaml:"default_resolver"`
}

// SweeperConfig holds liveness-sweeper settings.
type SweeperConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Concurrency     int           `yaml:"concurrency"`
	BatchSize       int           `yaml:"batch_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Actor           string        `yaml:"actor"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the fields the API service needs.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateSweeperConfig checks the fields the sweeper service needs.
func (c *Config) ValidateSweeperConfig() error {
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be greater than 0")
	}

	if c.Sweeper.Concurrency <= 0 {
		return fmt.Errorf("sweeper concurrency must be greater than 0")
	}

	if c.Sweeper.BatchSize <= 0 {
		return fmt.Errorf("sweeper batch_size must be greater than 0")
	}

	if c.Sweeper.ShutdownTimeout <= 0 {
		return fmt.Errorf("sweeper shutdown_timeout must be greater than 0")
	}

	if c.Sweeper.Actor == "" {
		return fmt.Errorf("sweeper actor identity is required")
	}

	return c.validateShared()
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Ledger.NativeURL == "" {
		return fmt.Errorf("ledger native_url is required")
	}

	if c.Ledger.CustodyAccount == "" {
		return fmt.Errorf("ledger custody_account is required")
	}

	for _, token := range c.Ledger.Tokens {
		if token.Asset == "" || token.URL == "" {
			return fmt.Errorf("ledger tokens entries require both asset and url")
		}
	}

	if c.Escrow.Administrator == "" {
		return fmt.Errorf("escrow administrator is required")
	}

	if c.Escrow.GracePeriod < 0 {
		return fmt.Errorf("escrow grace_period must not be negative")
	}

	return nil
}
