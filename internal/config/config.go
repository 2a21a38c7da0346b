// Package config loads deployment settings from an optional config.yaml,
// a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// WriteRate limits mutating calls per user, in requests per second.
	WriteRate  float64 `mapstructure:"write_rate"`
	WriteBurst int     `mapstructure:"write_burst"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	CounterTTL time.Duration `mapstructure:"counter_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ChatConfig struct {
	MaxMessageLength  int `mapstructure:"max_message_length"`
	GatheringCapacity int `mapstructure:"gathering_capacity"`
	PageSize          int `mapstructure:"page_size"`
}

type NotifyConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Queue   string        `mapstructure:"queue"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. A missing .env or config.yaml is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Env overrides arrive as a single comma separated string.
	if len(cfg.Server.CORSOrigins) == 1 && strings.Contains(cfg.Server.CORSOrigins[0], ",") {
		cfg.Server.CORSOrigins = strings.Split(cfg.Server.CORSOrigins[0], ",")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.write_rate", 5.0)
	v.SetDefault("server.write_burst", 10)

	v.SetDefault("database.dsn", "host=localhost user=user password=password dbname=travelmate port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 20)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.counter_ttl", CounterDefaultTTL)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("chat.max_message_length", DefaultMaxMessageLength)
	v.SetDefault("chat.gathering_capacity", DefaultGatheringCapacity)
	v.SetDefault("chat.page_size", DefaultPageSize)

	v.SetDefault("notify.timeout", NotifyDefaultTimeout)
	v.SetDefault("notify.queue", "notifications")

	v.SetDefault("telegram.bot_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat.max_message_length must be positive, got %d", c.Chat.MaxMessageLength)
	}
	if c.Chat.GatheringCapacity < 2 {
		return fmt.Errorf("chat.gathering_capacity must be at least 2, got %d", c.Chat.GatheringCapacity)
	}
	if c.Chat.PageSize < MinPageSize || c.Chat.PageSize > MaxPageSize {
		return fmt.Errorf("chat.page_size must be within [%d, %d]", MinPageSize, MaxPageSize)
	}
	if c.TelegramEnabled() && !c.RedisEnabled() {
		return errors.New("telegram.bot_token requires redis.addr for the push queue")
	}
	return nil
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}
