package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds environment driven configuration values.
// Secrets (API keys, JWT secret) have no defaults and must come from env files or the environment.
type AppConfig struct {
	AppPort            string
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Redis for OAuth state, token revocation and list caching; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// AI provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	AIMaxTokens   int
	AITemperature float64
	AIMaxRetries  int
	// Outbound HTTP timeout applied to every provider call
	OutboundTimeoutSec int
	// Mastodon
	MastodonInstance     string
	MastodonClientID     string
	MastodonClientSecret string
	OAuthRedirectBase    string
	// Sessions and secrets
	JWTSecret          string
	SessionTTLHours    int
	TokenEncryptionKey string
	PostsCacheTTLSec   int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// OutboundTimeout is the bounded timeout for one provider call.
func (c AppConfig) OutboundTimeout() time.Duration {
	return time.Duration(c.OutboundTimeoutSec) * time.Second
}

// SessionTTL is the lifetime of an issued session token.
func (c AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// Validate reports missing required settings.
func (c AppConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB driver %q", c.DBDriver)
	}
	return nil
}

// Load reads configuration for the process and exits when it is invalid.
// It should be called once during boot; the result is passed down by value.
func Load() AppConfig {
	LoadDotEnv()
	cfg, err := LoadFrom("config")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// LoadFrom builds configuration from a config.json or config.yaml found in dir.
// Precedence: file -> defaults -> environment variable overrides.
func LoadFrom(dir string) (AppConfig, error) {
	var cfg AppConfig
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		loaded, err := loadConfigFile(filepath.Join(dir, name), &cfg)
		if err != nil {
			return cfg, err
		}
		if loaded {
			break
		}
	}
	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads .env files with priority: .env.local > .env.
// godotenv.Load does not overwrite variables that are already set.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// loadConfigFile decodes a grouped JSON or YAML document into out.
// A missing file is not an error; it reports loaded=false.
func loadConfigFile(path string, out *AppConfig) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	var raw map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	if app := section(raw, "app"); app != nil {
		out.AppPort = getString(app, "AppPort")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.JWTSecret = getString(app, "JWTSecret")
		out.SessionTTLHours = getInt(app, "SessionTTLHours")
		out.TokenEncryptionKey = getString(app, "TokenEncryptionKey")
		out.PostsCacheTTLSec = getInt(app, "PostsCacheTTLSec")
		out.OutboundTimeoutSec = getInt(app, "OutboundTimeoutSec")
	}

	if g := section(raw, "gin"); g != nil {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if dbs := section(raw, "database"); dbs != nil {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds := section(raw, "redis"); rds != nil {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if ai := section(raw, "ai"); ai != nil {
		out.OpenAIAPIKey = getString(ai, "APIKey")
		out.OpenAIBaseURL = getString(ai, "BaseURL")
		out.OpenAIModel = getString(ai, "Model")
		out.AIMaxTokens = getInt(ai, "MaxTokens")
		out.AITemperature = getFloat(ai, "Temperature")
		out.AIMaxRetries = getInt(ai, "MaxRetries")
	}

	if md := section(raw, "mastodon"); md != nil {
		out.MastodonInstance = getString(md, "Instance")
		out.MastodonClientID = getString(md, "ClientID")
		out.MastodonClientSecret = getString(md, "ClientSecret")
		out.OAuthRedirectBase = getString(md, "OAuthRedirectBase")
	}

	if lg := section(raw, "log"); lg != nil {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	return true, nil
}

func section(raw map[string]any, key string) map[string]any {
	m, _ := raw[key].(map[string]any)
	return m
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// getInt accepts both JSON numbers (float64) and YAML integers.
func getInt(m map[string]any, key string) int {
	switch t := m[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	}
	return 0
}

func getFloat(m map[string]any, key string) float64 {
	switch t := m[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getStringSlice(m map[string]any, key string) []string {
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if s, ok := it.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "postgen"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "postgen.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = "gpt-4o-mini"
	}
	if c.AIMaxTokens == 0 {
		c.AIMaxTokens = 250
	}
	if c.AITemperature == 0 {
		c.AITemperature = 0.7
	}
	if c.AIMaxRetries == 0 {
		c.AIMaxRetries = 2
	}
	if c.OutboundTimeoutSec == 0 {
		c.OutboundTimeoutSec = 10
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8000"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 72
	}
	if c.PostsCacheTTLSec == 0 {
		c.PostsCacheTTLSec = 300
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":                      &c.AppPort,
		"GIN_MODE":                      &c.GinMode,
		"GIN_PATH":                      &c.GinPath,
		"DB_DRIVER":                     &c.DBDriver,
		"DATABASE_URI":                  &c.DatabaseURI,
		"DB_HOST":                       &c.DBHost,
		"DB_PORT":                       &c.DBPort,
		"DB_USER":                       &c.DBUser,
		"DB_PASSWORD":                   &c.DBPassword,
		"DB_NAME":                       &c.DBName,
		"SQLITE_PATH":                   &c.SQLitePath,
		"REDIS_HOST":                    &c.RedisHost,
		"REDIS_PASSWORD":                &c.RedisPassword,
		"OPENAI_API_KEY":                &c.OpenAIAPIKey,
		"OPENAI_BASE_URL":               &c.OpenAIBaseURL,
		"OPENAI_MODEL":                  &c.OpenAIModel,
		"SOCIAL_AUTH_MASTODON_INSTANCE": &c.MastodonInstance,
		"SOCIAL_AUTH_MASTODON_KEY":      &c.MastodonClientID,
		"SOCIAL_AUTH_MASTODON_SECRET":   &c.MastodonClientSecret,
		"OAUTH_REDIRECT_BASE_URL":       &c.OAuthRedirectBase,
		"JWT_SECRET":                    &c.JWTSecret,
		"TOKEN_ENCRYPTION_KEY":          &c.TokenEncryptionKey,
		"LOG_LEVEL":                     &c.LogLevel,
		"LOG_PATH":                      &c.LogPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"AI_MAX_TOKENS":         &c.AIMaxTokens,
		"AI_MAX_RETRIES":        &c.AIMaxRetries,
		"OUTBOUND_TIMEOUT_SEC":  &c.OutboundTimeoutSec,
		"SESSION_TTL_HOURS":     &c.SessionTTLHours,
		"POSTS_CACHE_TTL_SEC":   &c.PostsCacheTTLSec,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value %s=%s: %w", key, v, err)
		}
		*dst = i
	}

	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid float value AI_TEMPERATURE=%s: %w", v, err)
		}
		c.AITemperature = f
	}
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
