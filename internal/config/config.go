// Package config defines the top-level configuration for the lottery daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by LOTTERY_* environment
// variables.
type Config struct {
	Operator Operator       `toml:"operator"`
	Chain    ChainConfig    `toml:"chain"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Registry RegistryConfig `toml:"registry"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Demo     DemoConfig     `toml:"demo"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// Operator holds the factory authority identity. Either a plain address or an
// encrypted key file; when a key is given the address is derived from it.
type Operator struct {
	Address          string `toml:"address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig selects the block counter source.
type ChainConfig struct {
	// Source is "manual" (in-process counter advanced on a ticker) or
	// "ethereum" (JSON-RPC block numbers from a live node).
	Source string `toml:"source"`
	RPCURL string `toml:"rpc_url"`
	// StartBlock seeds the manual counter.
	StartBlock uint64 `toml:"start_block"`
	// BlockInterval is how often the manual counter advances by one.
	BlockInterval duration `toml:"block_interval"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for round journal
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RegistryConfig holds the embedded factory registry location.
type RegistryConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per rate_window per client IP. Zero disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DemoConfig parameterizes the end-to-end demo mode.
type DemoConfig struct {
	TicketPrice  string `toml:"ticket_price"` // smallest unit, decimal string
	WindowBlocks uint64 `toml:"window_blocks"`
	Buyers       int    `toml:"buyers"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "250ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Source:        "manual",
			StartBlock:    0,
			BlockInterval: duration{time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "lottery",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lottery-journals",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Registry: RegistryConfig{
			Path: "lottery-registry.db",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"surprise_winner", "final_winner"},
		},
		Demo: DemoConfig{
			TicketPrice:  "10000000000000000", // 0.01 in 18-decimal units
			WindowBlocks: 500,
			Buyers:       4,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"demo":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, demo)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Operator — exactly one identity source.
	if c.Operator.Address == "" && c.Operator.EncryptedKeyPath == "" {
		errs = append(errs, "operator: either address or encrypted_key_path must be set")
	}
	if c.Operator.Address != "" && !common.IsHexAddress(c.Operator.Address) {
		errs = append(errs, fmt.Sprintf("operator: %q is not a hex address", c.Operator.Address))
	}
	if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
		errs = append(errs, "operator: key_password is required when encrypted_key_path is set")
	}

	// Chain
	switch strings.ToLower(c.Chain.Source) {
	case "manual":
		if c.Chain.BlockInterval.Duration <= 0 {
			errs = append(errs, "chain: block_interval must be positive for the manual source")
		}
	case "ethereum":
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required for the ethereum source")
		}
	default:
		errs = append(errs, fmt.Sprintf("chain: unknown source %q (valid: manual, ethereum)", c.Chain.Source))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Registry
	if c.Registry.Path == "" {
		errs = append(errs, "registry: path must not be empty")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Demo
	if strings.ToLower(c.Mode) == "demo" {
		if c.Demo.WindowBlocks == 0 {
			errs = append(errs, "demo: window_blocks must be positive")
		}
		if c.Demo.Buyers < 1 {
			errs = append(errs, "demo: buyers must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
