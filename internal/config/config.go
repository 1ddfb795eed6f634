package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "govorilka"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultMoyKlassBaseURL = "https://api.moyklass.com"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	// SecretKey encrypts free-text lead fields at rest.
	SecretKey string         `yaml:"secret_key"`
	Timezone  string         `yaml:"timezone"`
	Telegram  TelegramConfig `yaml:"telegram"`
	MoyKlass  MoyKlassConfig `yaml:"moyklass"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type RuntimePathsConfig struct {
	Logs   string `yaml:"logs"`
	Static string `yaml:"static"`
}

// TelegramConfig configures the channel-sync bot. ChannelID and
// ChannelUsername gate which channel's posts are synced; posts from any
// other chat are logged and skipped.
type TelegramConfig struct {
	BotToken        string `yaml:"bot_token"`
	ChannelID       int64  `yaml:"channel_id"`
	ChannelUsername string `yaml:"channel_username"`
	// WebhookSecret is compared against X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string `yaml:"webhook_secret"`
	NotifyChatID  int64  `yaml:"notify_chat_id"`
}

type MoyKlassConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type rawAppConfig struct {
	Port            int               `yaml:"port"`
	DSN             string            `yaml:"dsn"`
	DatabaseURL     string            `yaml:"database_url"`
	RedisURL        string            `yaml:"redis_url"`
	Database        rawDatabaseConfig `yaml:"database"`
	Redis           rawRedisConfig    `yaml:"redis"`
	Env             string            `yaml:"env"`
	Paths           rawPathsConfig    `yaml:"paths"`
	LogDir          string            `yaml:"log_dir"`
	StaticDir       string            `yaml:"static_dir"`
	AllowedOrigins  []string          `yaml:"allowed_origins"`
	JWTSecret       string            `yaml:"jwt_secret"`
	SecretKey       string            `yaml:"secret_key"`
	Timezone        string            `yaml:"timezone"`
	TZ              string            `yaml:"tz"`
	Telegram        rawTelegramConfig `yaml:"telegram"`
	TGBotToken      string            `yaml:"tg_bot_token"`
	TGChannelID     int64             `yaml:"tg_channel_id"`
	MoyKlass        rawMoyKlassConfig `yaml:"moyklass"`
	MoyKlassAPIKey  string            `yaml:"moyklass_api_key"`
	MoyKlassBaseURL string            `yaml:"moyklass_base_url"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawPathsConfig struct {
	Logs   string `yaml:"logs"`
	Static string `yaml:"static"`
}

type rawTelegramConfig struct {
	BotToken        string `yaml:"bot_token"`
	Token           string `yaml:"token"`
	ChannelID       int64  `yaml:"channel_id"`
	ChannelUsername string `yaml:"channel_username"`
	WebhookSecret   string `yaml:"webhook_secret"`
	NotifyChatID    int64  `yaml:"notify_chat_id"`
}

type rawMoyKlassConfig struct {
	APIKey  string `yaml:"api_key"`
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
	URL     string `yaml:"url"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyRawAppConfig(&cfg, raw)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		MoyKlass: MoyKlassConfig{
			BaseURL: defaultMoyKlassBaseURL,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Static); v != "" {
		cfg.Paths.Static = v
	}
	if v := strings.TrimSpace(raw.StaticDir); v != "" {
		cfg.Paths.Static = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.SecretKey); v != "" {
		cfg.SecretKey = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	tg := cfg.Telegram
	if v := strings.TrimSpace(raw.Telegram.BotToken); v != "" {
		tg.BotToken = v
	}
	if v := strings.TrimSpace(raw.Telegram.Token); v != "" {
		tg.BotToken = v
	}
	if v := strings.TrimSpace(raw.TGBotToken); v != "" {
		tg.BotToken = v
	}
	if raw.Telegram.ChannelID != 0 {
		tg.ChannelID = raw.Telegram.ChannelID
	}
	if raw.TGChannelID != 0 {
		tg.ChannelID = raw.TGChannelID
	}
	if v := strings.TrimSpace(raw.Telegram.ChannelUsername); v != "" {
		tg.ChannelUsername = strings.TrimPrefix(v, "@")
	}
	if v := strings.TrimSpace(raw.Telegram.WebhookSecret); v != "" {
		tg.WebhookSecret = v
	}
	if raw.Telegram.NotifyChatID != 0 {
		tg.NotifyChatID = raw.Telegram.NotifyChatID
	}
	cfg.Telegram = tg

	mk := cfg.MoyKlass
	if v := strings.TrimSpace(raw.MoyKlass.APIKey); v != "" {
		mk.APIKey = v
	}
	if v := strings.TrimSpace(raw.MoyKlass.Key); v != "" {
		mk.APIKey = v
	}
	if v := strings.TrimSpace(raw.MoyKlassAPIKey); v != "" {
		mk.APIKey = v
	}
	if v := strings.TrimSpace(raw.MoyKlass.BaseURL); v != "" {
		mk.BaseURL = v
	}
	if v := strings.TrimSpace(raw.MoyKlass.URL); v != "" {
		mk.BaseURL = v
	}
	if v := strings.TrimSpace(raw.MoyKlassBaseURL); v != "" {
		mk.BaseURL = v
	}
	mk.BaseURL = strings.TrimRight(mk.BaseURL, "/")
	cfg.MoyKlass = mk

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Redis.Params != nil {
		cfg.Params = copyStringMap(raw.Redis.Params)
	}

	return normalizeRedisConfig(cfg)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func normalizeRuntimePaths(paths RuntimePathsConfig) RuntimePathsConfig {
	paths.Logs = strings.TrimSpace(paths.Logs)
	paths.Static = strings.TrimSpace(paths.Static)
	return paths
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) StaticDir() string {
	if c == nil {
		return ResolveRuntimePath("", "static")
	}
	return ResolveRuntimePath(c.Paths.Static, "static")
}

// ExecutableDir returns the directory where the current executable resides.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err == nil && strings.TrimSpace(exe) != "" {
		if resolved, resolveErr := filepath.EvalSymlinks(exe); resolveErr == nil && strings.TrimSpace(resolved) != "" {
			exe = resolved
		}
		return filepath.Dir(exe)
	}

	if wd, wdErr := os.Getwd(); wdErr == nil && strings.TrimSpace(wd) != "" {
		return wd
	}
	return "."
}

// ResolveRuntimePath resolves runtime directories against the executable directory.
func ResolveRuntimePath(raw string, fallbackSubdir string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallbackSubdir)
		if target == "" {
			target = "."
		}
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(ExecutableDir(), target)
}
