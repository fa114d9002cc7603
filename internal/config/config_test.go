package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Operator.Address = "0x0000000000000000000000000000000000000001"
	return cfg
}

func TestDefaultsValidateWithOperator(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresOperator(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "operator")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"bad operator address", func(c *Config) { c.Operator.Address = "not-an-address" }, "hex address"},
		{"key without password", func(c *Config) {
			c.Operator.Address = ""
			c.Operator.EncryptedKeyPath = "key.json"
		}, "key_password"},
		{"bad chain source", func(c *Config) { c.Chain.Source = "solana" }, "unknown source"},
		{"ethereum without rpc", func(c *Config) { c.Chain.Source = "ethereum" }, "rpc_url"},
		{"zero block interval", func(c *Config) { c.Chain.BlockInterval = duration{} }, "block_interval"},
		{"bad db port", func(c *Config) { c.Database.Port = 70000 }, "database: port"},
		{"bad pool bounds", func(c *Config) { c.Database.PoolMinConns = 99 }, "pool_min_conns"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"s3 without bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
		{"empty registry path", func(c *Config) { c.Registry.Path = "" }, "registry: path"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"demo without buyers", func(c *Config) {
			c.Mode = "demo"
			c.Demo.Buyers = 0
		}, "buyers"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "demo"
log_level = "debug"

[operator]
address = "0x0000000000000000000000000000000000000001"

[chain]
source = "manual"
start_block = 7
block_interval = "250ms"

[server]
port = 9090
rate_limit = 20
rate_window = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "demo", cfg.Mode)
	require.Equal(t, uint64(7), cfg.Chain.StartBlock)
	require.Equal(t, 250*time.Millisecond, cfg.Chain.BlockInterval.Duration)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 20, cfg.Server.RateLimit)
	require.Equal(t, 2*time.Second, cfg.Server.RateWindow.Duration)

	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "lottery-registry.db", cfg.Registry.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[operator]
address = "0x0000000000000000000000000000000000000001"

[server]
port = 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("LOTTERY_SERVER_PORT", "7777")
	t.Setenv("LOTTERY_MODE", "demo")
	t.Setenv("LOTTERY_NOTIFY_EVENTS", "final_winner, surprise_winner")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, "demo", cfg.Mode)
	require.Equal(t, []string{"final_winner", "surprise_winner"}, cfg.Notify.Events)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "db-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Operator.KeyPassword = "key-secret"
	cfg.Server.APIKey = "api-secret"

	red := RedactedConfig(&cfg)
	require.NotContains(t, red.Database.Password, "secret")
	require.NotContains(t, red.Redis.Password, "secret")
	require.NotContains(t, red.S3.SecretKey, "secret")
	require.NotContains(t, red.Operator.KeyPassword, "secret")
	require.NotContains(t, red.Server.APIKey, "secret")

	// The original is untouched.
	require.Equal(t, "db-secret", cfg.Database.Password)
}
