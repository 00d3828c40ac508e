package config

import (
	"os"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL", "DATABASE_DRIVER", "DATABASE_DSN", "JWT_SECRET",
	"ACCESS_TOKEN_TTL_MINUTES", "REDIS_URL", "REQUEST_TIMEOUT", "WS_SEND_BUFFER",
	"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_SECOND", "RATE_LIMIT_BURST",
}

// clearEnv unsets every key for the duration of the test; t.Setenv restores the old values.
func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("Load() DatabaseDriver = %v, want postgres", cfg.DatabaseDriver)
	}
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("Load() RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.WsSendBuffer != 256 {
		t.Errorf("Load() WsSendBuffer = %v, want 256", cfg.WsSendBuffer)
	}
	if cfg.RateLimitPerSecond != 20 || cfg.RateLimitBurst != 40 {
		t.Errorf("Load() rate limit = %v/%v, want 20/40", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	if len(cfg.CorsAllowedOrigins) != 0 {
		t.Errorf("Load() CorsAllowedOrigins = %v, want empty", cfg.CorsAllowedOrigins)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:chat.db")
	t.Setenv("JWT_SECRET", "my-secret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test,https://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "file:chat.db" {
		t.Errorf("Load() database = %v %v, want sqlite file:chat.db", cfg.DatabaseDriver, cfg.DatabaseDSN)
	}
	if cfg.JWTSecret != "my-secret" {
		t.Errorf("Load() JWTSecret = %v, want my-secret", cfg.JWTSecret)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if cfg.AccessTokenTTLMinutes != 30 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 30", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Load() RedisURL = %v", cfg.RedisURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("Load() RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if len(cfg.CorsAllowedOrigins) != 2 || cfg.CorsAllowedOrigins[1] != "https://b.test" {
		t.Errorf("Load() CorsAllowedOrigins = %v", cfg.CorsAllowedOrigins)
	}
}

func TestLoad_InvalidNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "invalid")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail on a non-numeric ACCESS_TOKEN_TTL_MINUTES")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid dev config",
			cfg:     Config{Port: "8080", DatabaseDSN: "postgres://localhost/test", JWTSecret: defaultJWTSecret, Env: "dev"},
			wantErr: false,
		},
		{
			name:    "valid prod config",
			cfg:     Config{Port: "8080", DatabaseDSN: "postgres://localhost/test", JWTSecret: "production-secret-key", Env: "prod"},
			wantErr: false,
		},
		{
			name:    "empty port",
			cfg:     Config{Port: "", DatabaseDSN: "postgres://localhost/test", JWTSecret: "secret", Env: "dev"},
			wantErr: true,
		},
		{
			name:    "empty dsn",
			cfg:     Config{Port: "8080", DatabaseDSN: "", JWTSecret: "secret", Env: "dev"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     Config{Port: "8080", DatabaseDriver: "mysql", DatabaseDSN: "x", JWTSecret: "secret", Env: "dev"},
			wantErr: true,
		},
		{
			name:    "default secret in prod",
			cfg:     Config{Port: "8080", DatabaseDSN: "postgres://localhost/test", JWTSecret: defaultJWTSecret, Env: "prod"},
			wantErr: true,
		},
		{
			name:    "default secret in test env",
			cfg:     Config{Port: "8080", DatabaseDSN: "postgres://localhost/test", JWTSecret: defaultJWTSecret, Env: "test"},
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			cfg:     Config{Port: "8080", DatabaseDSN: "x", JWTSecret: "secret", Env: "dev", RateLimitBurst: -1},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Port: "8080", DatabaseDSN: "x", JWTSecret: "secret", Env: "dev", RequestTimeout: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
