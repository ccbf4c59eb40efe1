// Package config loads service settings from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendGitHub   = "github"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var (
	ErrMissingBotToken = errors.New("bot token is required")
	ErrUnknownBackend  = errors.New("unknown store backend")
)

type Config struct {
	Bot    BotConfig    `mapstructure:"Bot"`
	Quota  QuotaConfig  `mapstructure:"Quota"`
	Store  StoreConfig  `mapstructure:"Store"`
	Flood  FloodConfig  `mapstructure:"Flood"`
	Server ServerConfig `mapstructure:"Server"`
	Log    LogConfig    `mapstructure:"Log"`
}

type BotConfig struct {
	Token   string `mapstructure:"Token"`
	OwnerID int64  `mapstructure:"OwnerID"`
}

type QuotaConfig struct {
	DailyLimit int           `mapstructure:"DailyLimit"`
	Timezone   string        `mapstructure:"Timezone"`
	Timeout    time.Duration `mapstructure:"Timeout"`
}

type StoreConfig struct {
	Backend     string       `mapstructure:"Backend"`
	GitHub      GitHubConfig `mapstructure:"GitHub"`
	RedisAddr   string       `mapstructure:"RedisAddr"`
	RedisKey    string       `mapstructure:"RedisKey"`
	DatabaseURL string       `mapstructure:"DatabaseURL"`
}

type GitHubConfig struct {
	Token   string `mapstructure:"Token"`
	Repo    string `mapstructure:"Repo"`
	Path    string `mapstructure:"Path"`
	Branch  string `mapstructure:"Branch"`
	BaseURL string `mapstructure:"BaseURL"`
}

type FloodConfig struct {
	Limit  int64         `mapstructure:"Limit"`
	Window time.Duration `mapstructure:"Window"`
}

type ServerConfig struct {
	Port int `mapstructure:"Port"`
}

type LogConfig struct {
	Format string `mapstructure:"Format"`
	Level  string `mapstructure:"Level"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"Bot.Token":            "BOT_TOKEN",
	"Bot.OwnerID":          "OWNER_ID",
	"Quota.DailyLimit":     "DAILY_LIMIT",
	"Quota.Timezone":       "TIMEZONE",
	"Quota.Timeout":        "STORE_TIMEOUT",
	"Store.Backend":        "STORE_BACKEND",
	"Store.GitHub.Token":   "GITHUB_TOKEN",
	"Store.GitHub.Repo":    "GITHUB_REPO",
	"Store.GitHub.Path":    "GITHUB_PATH",
	"Store.GitHub.Branch":  "GITHUB_BRANCH",
	"Store.GitHub.BaseURL": "GITHUB_API_URL",
	"Store.RedisAddr":      "REDIS_ADDR",
	"Store.RedisKey":       "REDIS_KEY",
	"Store.DatabaseURL":    "DATABASE_URL",
	"Flood.Limit":          "FLOOD_LIMIT",
	"Flood.Window":         "FLOOD_WINDOW",
	"Server.Port":          "PORT",
	"Log.Format":           "LOG_FORMAT",
	"Log.Level":            "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Quota.DailyLimit", 25)
	v.SetDefault("Quota.Timezone", "Local")
	v.SetDefault("Quota.Timeout", 10*time.Second)
	v.SetDefault("Store.Backend", BackendGitHub)
	v.SetDefault("Store.GitHub.Path", "limits.json")
	v.SetDefault("Store.RedisKey", "quota:limits")
	v.SetDefault("Flood.Limit", 20)
	v.SetDefault("Flood.Window", time.Minute)
	v.SetDefault("Server.Port", 10000)
	v.SetDefault("Log.Format", "console")
	v.SetDefault("Log.Level", "info")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that cannot fall back to a default.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return ErrMissingBotToken
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))

	switch c.Store.Backend {
	case BackendGitHub, BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Quota.Timezone, err)
	}

	return nil
}

// GitHubEnabled reports whether both the token and the repository are set.
// Without them the GitHub backend runs inert.
func (c *Config) GitHubEnabled() bool {
	return c.Store.GitHub.Token != "" && c.Store.GitHub.Repo != ""
}

// Location returns the time zone that decides where a quota day starts.
func (c *Config) Location() (*time.Location, error) {
	if c.Quota.Timezone == "" || c.Quota.Timezone == "Local" {
		return time.Local, nil
	}

	return time.LoadLocation(c.Quota.Timezone)
}
