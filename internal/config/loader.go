package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LOTTERY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LOTTERY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Operator ──
	setStr(&cfg.Operator.Address, "LOTTERY_OPERATOR_ADDRESS")
	setStr(&cfg.Operator.EncryptedKeyPath, "LOTTERY_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "LOTTERY_OPERATOR_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.Source, "LOTTERY_CHAIN_SOURCE")
	setStr(&cfg.Chain.RPCURL, "LOTTERY_CHAIN_RPC_URL")
	setUint64(&cfg.Chain.StartBlock, "LOTTERY_CHAIN_START_BLOCK")
	setDuration(&cfg.Chain.BlockInterval, "LOTTERY_CHAIN_BLOCK_INTERVAL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "LOTTERY_DATABASE_DSN")
	setStr(&cfg.Database.Host, "LOTTERY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "LOTTERY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "LOTTERY_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "LOTTERY_DATABASE_USER")
	setStr(&cfg.Database.Password, "LOTTERY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "LOTTERY_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "LOTTERY_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "LOTTERY_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "LOTTERY_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LOTTERY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LOTTERY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LOTTERY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LOTTERY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LOTTERY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LOTTERY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LOTTERY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LOTTERY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LOTTERY_S3_REGION")
	setStr(&cfg.S3.Bucket, "LOTTERY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LOTTERY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LOTTERY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LOTTERY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LOTTERY_S3_FORCE_PATH_STYLE")

	// ── Registry ──
	setStr(&cfg.Registry.Path, "LOTTERY_REGISTRY_PATH")

	// ── Server ──
	setInt(&cfg.Server.Port, "LOTTERY_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "LOTTERY_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "LOTTERY_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "LOTTERY_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LOTTERY_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LOTTERY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LOTTERY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LOTTERY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LOTTERY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LOTTERY_MODE")
	setStr(&cfg.LogLevel, "LOTTERY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
