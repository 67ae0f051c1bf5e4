package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

// Insecure fallbacks kept for local development. Load flags them.
const (
	defaultNeo4jURI      = "neo4j://localhost:7687"
	defaultNeo4jUser     = "neo4j"
	defaultNeo4jPassword = "password"
)

// Config keeps runtime settings.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  string         `mapstructure:"backend"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Locale   string `mapstructure:"locale"`
	Timezone string `mapstructure:"timezone"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// UsesDefaultCredentials reports whether the built-in development credentials are in effect.
func (c Neo4jConfig) UsesDefaultCredentials() bool {
	return c.Username == defaultNeo4jUser && c.Password == defaultNeo4jPassword
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type TelegramConfig struct {
	Token        string  `mapstructure:"token"`
	AllowedUsers []int64 `mapstructure:"-"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads .env (if present), environment variables and defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated list, e.g. "1234,5678".
	if raw := v.GetString("telegram.allowed_users"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_USERS: %w", err)
		}
		cfg.Telegram.AllowedUsers = ids
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.locale", "en")
	v.SetDefault("app.timezone", "Local")

	v.SetDefault("backend", BackendNeo4j)

	v.SetDefault("neo4j.uri", defaultNeo4jURI)
	v.SetDefault("neo4j.username", defaultNeo4jUser)
	v.SetDefault("neo4j.password", defaultNeo4jPassword)
	v.SetDefault("neo4j.database", "")

	v.SetDefault("sqlite.path", "taskbook.db")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allowed_users", "")

	v.SetDefault("refresh.interval", "5m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "logs/taskbook.log")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"app.locale":             "APP_LOCALE",
		"app.timezone":           "APP_TIMEZONE",
		"backend":                "TASKBOOK_BACKEND",
		"neo4j.uri":              "NEO4J_URI",
		"neo4j.username":         "NEO4J_USERNAME",
		"neo4j.password":         "NEO4J_PASSWORD",
		"neo4j.database":         "NEO4J_DATABASE",
		"sqlite.path":            "SQLITE_PATH",
		"telegram.token":         "TELEGRAM_TOKEN",
		"telegram.allowed_users": "TELEGRAM_ALLOWED_USERS",
		"refresh.interval":       "REFRESH_INTERVAL",
		"logger.level":           "LOG_LEVEL",
		"logger.format":          "LOG_FORMAT",
		"logger.output":          "LOG_OUTPUT",
		"logger.filename":        "LOG_FILE",
		"metrics.enabled":        "METRICS_ENABLED",
		"metrics.port":           "METRICS_PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Backend {
	case BackendNeo4j:
		if cfg.Neo4j.URI == "" {
			return fmt.Errorf("neo4j uri is required")
		}
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", cfg.Backend, BackendNeo4j, BackendSQLite)
	}

	if cfg.Refresh.Interval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1 and 65535")
	}
	if _, err := cfg.App.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone used for calendar-day bucketing.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LanguageTag is the locale used for alphabetical ordering. Unparseable values fall back to English.
func (c AppConfig) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
