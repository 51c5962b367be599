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
// built-in defaults, applies AGENT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known AGENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "AGENT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "AGENT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "AGENT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "AGENT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "AGENT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "AGENT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "AGENT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "AGENT_SUPABASE_SSLMODE")
	setStr(&cfg.Supabase.SSLMode, "AGENT_SUPABASE_SSL_MODE") // compatibility alias
	setInt(&cfg.Supabase.PoolMaxConns, "AGENT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "AGENT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "AGENT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AGENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AGENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AGENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AGENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AGENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AGENT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AGENT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AGENT_S3_REGION")
	setStr(&cfg.S3.Bucket, "AGENT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AGENT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AGENT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AGENT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AGENT_S3_FORCE_PATH_STYLE")

	// ── Agent ──
	setDuration(&cfg.Agent.DecisionTimeout, "AGENT_DECISION_TIMEOUT")
	setFloat64(&cfg.Agent.BaseUrgency, "AGENT_BASE_URGENCY")
	setBool(&cfg.Agent.ShellEnabled, "AGENT_SHELL_ENABLED")

	// ── Sweep ──
	setBool(&cfg.Sweep.Enabled, "AGENT_SWEEP_ENABLED")
	setDuration(&cfg.Sweep.Interval, "AGENT_SWEEP_INTERVAL")
	setInt(&cfg.Sweep.BatchSize, "AGENT_SWEEP_BATCH_SIZE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AGENT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "AGENT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "AGENT_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AGENT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AGENT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AGENT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AGENT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "AGENT_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AGENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AGENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AGENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AGENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AGENT_MODE")
	setStr(&cfg.LogLevel, "AGENT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
