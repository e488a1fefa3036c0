package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the chat service.
type Config struct {
	Port string
	Env  string

	DBDriver    string // postgres or sqlite
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	LogLevel  string
	LogPretty bool

	WS    WebSocketConfig
	Store StoreConfig
}

// WebSocketConfig controls live connection behaviour.
type WebSocketConfig struct {
	IdentifyTimeout time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	AllowedOrigins  []string // empty accepts any origin
}

// PingPeriod must stay below PongWait so the peer answers before the read deadline.
func (c WebSocketConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// StoreConfig controls persistence and collaborator calls.
type StoreConfig struct {
	OpTimeout         time.Duration
	DirectoryCacheTTL time.Duration
	PushQueueKey      string
	PageSizeDefault   int
	PageSizeMax       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("sqlite_path", "./data/chat.db")
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("ws_identify_timeout", 10*time.Second)
	v.SetDefault("ws_pong_wait", 60*time.Second)
	v.SetDefault("ws_write_wait", 10*time.Second)
	v.SetDefault("ws_max_message_size", 512*1024)
	v.SetDefault("ws_send_buffer", 256)
	v.SetDefault("store_op_timeout", 5*time.Second)
	v.SetDefault("directory_cache_ttl", 5*time.Minute)
	v.SetDefault("push_queue_key", "push:jobs")
	v.SetDefault("page_size_default", 5)
	v.SetDefault("page_size_max", 100)
}

// Load reads configuration from .env files, an optional config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		Env:         v.GetString("env"),
		DBDriver:    strings.ToLower(v.GetString("db_driver")),
		DatabaseURL: v.GetString("database_url"),
		SQLitePath:  v.GetString("sqlite_path"),
		RedisURL:    v.GetString("redis_url"),
		JWTSecret:   v.GetString("jwt_secret"),
		JWTTTL:      v.GetDuration("jwt_ttl"),
		LogLevel:    v.GetString("log_level"),
		LogPretty:   v.GetBool("log_pretty"),
		WS: WebSocketConfig{
			IdentifyTimeout: v.GetDuration("ws_identify_timeout"),
			PongWait:        v.GetDuration("ws_pong_wait"),
			WriteWait:       v.GetDuration("ws_write_wait"),
			MaxMessageSize:  v.GetInt64("ws_max_message_size"),
			SendBuffer:      v.GetInt("ws_send_buffer"),
			AllowedOrigins:  v.GetStringSlice("ws_allowed_origins"),
		},
		Store: StoreConfig{
			OpTimeout:         v.GetDuration("store_op_timeout"),
			DirectoryCacheTTL: v.GetDuration("directory_cache_ttl"),
			PushQueueKey:      v.GetString("push_queue_key"),
			PageSizeDefault:   v.GetInt("page_size_default"),
			PageSizeMax:       v.GetInt("page_size_max"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.IsProduction() {
		if c.DBDriver != "postgres" || c.DatabaseURL == "" {
			return errors.New("DATABASE_URL with DB_DRIVER=postgres is required in production")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required in production")
		}
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
	}
	if c.Store.PageSizeDefault < 1 || c.Store.PageSizeMax < c.Store.PageSizeDefault {
		return errors.New("invalid page size configuration")
	}
	return nil
}

// IsProduction returns true if running with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Default returns the configuration used when nothing is set, handy for tests.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		Port:      v.GetString("port"),
		Env:       "test",
		DBDriver:  "sqlite",
		JWTSecret: "test-secret",
		JWTTTL:    v.GetDuration("jwt_ttl"),
		LogLevel:  "info",
		WS: WebSocketConfig{
			IdentifyTimeout: v.GetDuration("ws_identify_timeout"),
			PongWait:        v.GetDuration("ws_pong_wait"),
			WriteWait:       v.GetDuration("ws_write_wait"),
			MaxMessageSize:  v.GetInt64("ws_max_message_size"),
			SendBuffer:      v.GetInt("ws_send_buffer"),
		},
		Store: StoreConfig{
			OpTimeout:         v.GetDuration("store_op_timeout"),
			DirectoryCacheTTL: v.GetDuration("directory_cache_ttl"),
			PushQueueKey:      v.GetString("push_queue_key"),
			PageSizeDefault:   v.GetInt("page_size_default"),
			PageSizeMax:       v.GetInt("page_size_max"),
		},
	}
}
