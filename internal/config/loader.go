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
// built-in defaults, applies METADAO_* environment variable overrides, and
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

// applyEnvOverrides reads well-known METADAO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Economics ──
	setUint64(&cfg.Economics.FeeBps, "METADAO_ECONOMICS_FEE_BPS")
	setUint64(&cfg.Economics.MinBet, "METADAO_ECONOMICS_MIN_BET")
	setDuration(&cfg.Economics.MinDuration, "METADAO_ECONOMICS_MIN_DURATION")
	setDuration(&cfg.Economics.MaxDuration, "METADAO_ECONOMICS_MAX_DURATION")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "METADAO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "METADAO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "METADAO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "METADAO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "METADAO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "METADAO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "METADAO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "METADAO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "METADAO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "METADAO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "METADAO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "METADAO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "METADAO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "METADAO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "METADAO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "METADAO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "METADAO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "METADAO_S3_REGION")
	setStr(&cfg.S3.Bucket, "METADAO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "METADAO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "METADAO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "METADAO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "METADAO_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "METADAO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "METADAO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "METADAO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "METADAO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "METADAO_SERVER_RATE_WINDOW")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "METADAO_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "METADAO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "METADAO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "METADAO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "METADAO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "METADAO_MODE")
	setStr(&cfg.LogLevel, "METADAO_LOG_LEVEL")
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
