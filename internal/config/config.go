package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Ethereum node configuration
	Ethereum EthereumConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Indexer configuration
	Indexer IndexerConfig

	// Payment contract configuration
	Contract ContractConfig

	// Logging configuration
	Log LogConfig
}

// EthereumConfig holds Ethereum node connection settings
type EthereumConfig struct {
	RPCURL         string        `envconfig:"ETH_RPC_URL" default:"http://localhost:8545"`
	ChainID        int64         `envconfig:"ETH_CHAIN_ID" default:"1"`
	Network        string        `envconfig:"ETH_NETWORK" default:"ethereum"`
	RequestTimeout time.Duration `envconfig:"ETH_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"ETH_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ETH_RETRY_DELAY" default:"1s"`
	MaxRetryDelay  time.Duration `envconfig:"ETH_MAX_RETRY_DELAY" default:"15s"`
	RateLimitRPS   float64       `envconfig:"ETH_RATE_LIMIT_RPS" default:"25"`
	Confirmations  int           `envconfig:"ETH_BLOCK_CONFIRMATIONS" default:"0"`

	// Additional networks, e.g. "polygon:https://polygon-rpc.com,base:https://mainnet.base.org".
	// The default network above is always present.
	NetworkRPCURLs map[string]string `envconfig:"ETH_NETWORK_RPC_URLS"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"indexer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"indexer"`
	Name            string        `envconfig:"DB_NAME" default:"wowseo_indexer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"2m"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// IndexerConfig holds indexer-specific settings
type IndexerConfig struct {
	MetricsPort      int           `envconfig:"INDEXER_METRICS_PORT" default:"8080"`
	PollInterval     time.Duration `envconfig:"INDEXER_POLL_INTERVAL" default:"12s"`
	WorkerCount      int           `envconfig:"INDEXER_WORKER_COUNT" default:"4"`
	FetchConcurrency int           `envconfig:"INDEXER_FETCH_CONCURRENCY" default:"4"`
	LockTTL          time.Duration `envconfig:"INDEXER_LOCK_TTL" default:"5m"`
	ErrorBackoff     time.Duration `envconfig:"INDEXER_ERROR_BACKOFF" default:"30s"`
	MaxErrorBackoff  time.Duration `envconfig:"INDEXER_MAX_ERROR_BACKOFF" default:"10m"`
	MaxAcceptableLag uint64        `envconfig:"INDEXER_MAX_ACCEPTABLE_LAG" default:"100"`
	MetricsCacheTTL  time.Duration `envconfig:"INDEXER_METRICS_CACHE_TTL" default:"15s"`
}

// ContractConfig holds DashboardTools payment contract settings
type ContractConfig struct {
	Address         string        `envconfig:"CONTRACT_ADDRESS" default:""`
	PaymentToken    string        `envconfig:"CONTRACT_PAYMENT_TOKEN" default:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`
	SignerKey       string        `envconfig:"CONTRACT_SIGNER_KEY" default:""`
	DiscountPercent int64         `envconfig:"CONTRACT_BUNDLE_DISCOUNT_PERCENT" default:"10"`
	TxTimeout       time.Duration `envconfig:"CONTRACT_TX_TIMEOUT" default:"90s"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.Contract.DiscountPercent < 0 || c.Contract.DiscountPercent > 100 {
		return fmt.Errorf("CONTRACT_BUNDLE_DISCOUNT_PERCENT must be within [0,100], got %d", c.Contract.DiscountPercent)
	}
	if c.Indexer.WorkerCount < 1 {
		return fmt.Errorf("INDEXER_WORKER_COUNT must be positive, got %d", c.Indexer.WorkerCount)
	}
	if c.Indexer.FetchConcurrency < 1 {
		return fmt.Errorf("INDEXER_FETCH_CONCURRENCY must be positive, got %d", c.Indexer.FetchConcurrency)
	}
	if c.Ethereum.Network == "" {
		return fmt.Errorf("ETH_NETWORK must not be empty")
	}
	return nil
}

// Networks returns every configured network with its RPC URL
func (c *EthereumConfig) Networks() map[string]string {
	networks := make(map[string]string, len(c.NetworkRPCURLs)+1)
	for name, url := range c.NetworkRPCURLs {
		networks[name] = url
	}
	networks[c.Network] = c.RPCURL
	return networks
}

// NetworkNames returns the configured network names in sorted order
func (c *EthereumConfig) NetworkNames() []string {
	networks := c.Networks()
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
