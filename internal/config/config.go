package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string        `envconfig:"APP_PORT" default:"8080"`
	Env                   string        `envconfig:"APP_ENV" default:"dev"`
	LogLevel              string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseDriver        string        `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseDSN           string        `envconfig:"DATABASE_DSN" default:"host=localhost user=postgres password=postgres dbname=directchat port=5432 sslmode=disable TimeZone=UTC"`
	JWTSecret             string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	AccessTokenTTLMinutes int           `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"15"`
	RedisURL              string        `envconfig:"REDIS_URL"`
	RequestTimeout        time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	WsSendBuffer          int           `envconfig:"WS_SEND_BUFFER" default:"256"`
	CorsAllowedOrigins    []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerSecond    float64       `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
	RateLimitBurst        int           `envconfig:"RATE_LIMIT_BURST" default:"40"`
}

// Load 先尝试读取 .env，再从环境变量解析配置。
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查启动所需的关键配置，非 dev 环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	switch cfg.DatabaseDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.Env != "dev" && (cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set outside dev")
	}
	if cfg.RequestTimeout < 0 {
		return errors.New("REQUEST_TIMEOUT must not be negative")
	}
	if cfg.RateLimitPerSecond < 0 || cfg.RateLimitBurst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}
