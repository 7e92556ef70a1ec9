package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xaenox/goodluck-bot/internal/classifier"
	"github.com/xaenox/goodluck-bot/internal/selector"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	BackendFile   = "file"
	BackendSheet  = "sheet"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Store     StoreConfig    `mapstructure:"store"`
	Operators []int64        `mapstructure:"-"`
	Tracking  TrackingConfig `mapstructure:"tracking"`
	Enabled   EnabledConfig  `mapstructure:"enabled"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type StoreConfig struct {
	Driver             string         `mapstructure:"driver"`
	SpreadsheetID      string         `mapstructure:"spreadsheet_id"`
	DatabaseURL        string         `mapstructure:"database_url"`
	Database           DatabaseConfig `mapstructure:"-"`
	Timeout            time.Duration  `mapstructure:"timeout"`
	SummaryDestination string         `mapstructure:"summary_destination"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type TrackingConfig struct {
	Triggers      []string             `mapstructure:"-"`
	MatchMode     classifier.MatchMode `mapstructure:"match_mode"`
	Scope         selector.Scope       `mapstructure:"scope"`
	FlushInterval time.Duration        `mapstructure:"flush_interval"`
	ResetInterval time.Duration        `mapstructure:"reset_interval"`
	MaxAttempts   int                  `mapstructure:"max_attempts"`
}

type EnabledConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	Destination string `mapstructure:"destination"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisKey    string `mapstructure:"redis_key"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StartupError lists every missing or invalid setting found while loading.
type StartupError struct {
	Missing []string
	Invalid []string
}

func (e *StartupError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, "; "))
	}
	return "invalid configuration (" + strings.Join(parts, "; ") + ")"
}

func (e *StartupError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// env maps config keys to the environment variables that can set them. The
// first variable listed wins.
var env = map[string][]string{
	"telegram.token":            {"TELEGRAM_TOKEN", "BOT_TOKEN"},
	"telegram.poll_timeout":     {"POLL_TIMEOUT"},
	"store.driver":              {"STORE_DRIVER"},
	"store.spreadsheet_id":      {"STORE_SPREADSHEET_ID"},
	"store.database_url":        {"DATABASE_URL"},
	"store.timeout":             {"STORE_TIMEOUT"},
	"store.summary_destination": {"SUMMARY_DESTINATION"},
	"operators":                 {"OPERATOR_IDS"},
	"tracking.triggers":         {"TRIGGER_PHRASES"},
	"tracking.match_mode":       {"MATCH_MODE"},
	"tracking.scope":            {"TARGET_SCOPE"},
	"tracking.flush_interval":   {"FLUSH_INTERVAL"},
	"tracking.reset_interval":   {"RESET_INTERVAL"},
	"tracking.max_attempts":     {"MAX_ATTEMPTS"},
	"enabled.backend":           {"ENABLED_BACKEND"},
	"enabled.path":              {"ENABLED_PATH"},
	"enabled.redis_url":         {"REDIS_URL"},
	"enabled.redis_key":         {"REDIS_KEY"},
	"metrics.addr":              {"METRICS_ADDR"},
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the optional YAML file at path, overlays the environment
// and validates the result. Validation problems are reported together in a
// *StartupError.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.poll_timeout", 60*time.Second)
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.timeout", 15*time.Second)
	v.SetDefault("store.summary_destination", "Summary")
	v.SetDefault("tracking.match_mode", string(classifier.MatchExact))
	v.SetDefault("tracking.scope", string(selector.ScopeGlobal))
	v.SetDefault("tracking.flush_interval", 30*time.Second)
	v.SetDefault("tracking.reset_interval", time.Duration(0))
	v.SetDefault("tracking.max_attempts", 3)
	v.SetDefault("enabled.backend", BackendFile)
	v.SetDefault("enabled.path", "enabled_chats.json")
	v.SetDefault("enabled.destination", "Enabled")
	v.SetDefault("enabled.redis_key", "goodluck-bot:enabled")

	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	serr := &StartupError{}
	config.Operators = parseOperators(listValue(v, "operators"), serr)
	config.Tracking.Triggers = normalizeTriggers(listValue(v, "tracking.triggers"))
	validate(&config, serr)
	if !serr.empty() {
		return nil, serr
	}
	return &config, nil
}

func validate(config *Config, serr *StartupError) {
	if strings.TrimSpace(config.Telegram.Token) == "" {
		serr.Missing = append(serr.Missing, "TELEGRAM_TOKEN")
	}
	if strings.TrimSpace(config.Store.SpreadsheetID) == "" {
		serr.Missing = append(serr.Missing, "STORE_SPREADSHEET_ID")
	}
	if len(config.Operators) == 0 {
		serr.Missing = append(serr.Missing, "OPERATOR_IDS")
	}
	if len(config.Tracking.Triggers) == 0 {
		serr.Missing = append(serr.Missing, "TRIGGER_PHRASES")
	}

	switch config.Store.Driver = strings.ToLower(config.Store.Driver); config.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if config.Store.DatabaseURL == "" {
			serr.Missing = append(serr.Missing, "DATABASE_URL")
			break
		}
		db, err := parseDatabaseURL(config.Store.DatabaseURL)
		if err != nil {
			serr.Invalid = append(serr.Invalid, fmt.Sprintf("DATABASE_URL: %v", err))
			break
		}
		config.Store.Database = db
	default:
		serr.Invalid = append(serr.Invalid, fmt.Sprintf("STORE_DRIVER: unknown driver %q", config.Store.Driver))
	}

	switch config.Enabled.Backend = strings.ToLower(config.Enabled.Backend); config.Enabled.Backend {
	case BackendFile, BackendSheet, BackendMemory:
	case BackendRedis:
		if config.Enabled.RedisURL == "" {
			serr.Missing = append(serr.Missing, "REDIS_URL")
		}
	default:
		serr.Invalid = append(serr.Invalid, fmt.Sprintf("ENABLED_BACKEND: unknown backend %q", config.Enabled.Backend))
	}

	mode, err := classifier.ParseMatchMode(string(config.Tracking.MatchMode))
	if err != nil {
		serr.Invalid = append(serr.Invalid, "MATCH_MODE: "+err.Error())
	}
	config.Tracking.MatchMode = mode

	scope, err := selector.ParseScope(string(config.Tracking.Scope))
	if err != nil {
		serr.Invalid = append(serr.Invalid, "TARGET_SCOPE: "+err.Error())
	}
	config.Tracking.Scope = scope

	if config.Tracking.FlushInterval <= 0 {
		serr.Invalid = append(serr.Invalid, "FLUSH_INTERVAL: must be positive")
	}
	if config.Tracking.ResetInterval < 0 {
		serr.Invalid = append(serr.Invalid, "RESET_INTERVAL: must not be negative")
	}
	if config.Tracking.MaxAttempts <= 0 {
		serr.Invalid = append(serr.Invalid, "MAX_ATTEMPTS: must be positive")
	}
	if config.Store.Timeout <= 0 {
		serr.Invalid = append(serr.Invalid, "STORE_TIMEOUT: must be positive")
	}
}

// listValue reads a key that is either a YAML list or a comma separated
// string, as environment variables are.
func listValue(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseOperators(items []string, serr *StartupError) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			serr.Invalid = append(serr.Invalid, fmt.Sprintf("OPERATOR_IDS: %q is not a user id", item))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func normalizeTriggers(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}
