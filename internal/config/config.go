package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// GatewayConfig holds payment gateway credentials and endpoints.
//
// The gateway client receives this struct explicitly at construction;
// there is no process-wide credential state.
type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RedisConfig holds the report cache settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig holds the optional audit mirror settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig holds logging output settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the full application configuration.
type Config struct {
	Listen   string        `yaml:"listen"`
	Database string        `yaml:"database"`
	JWT      JWTConfig     `yaml:"jwt"`
	Gateway  GatewayConfig `yaml:"gateway"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Log      LogConfig     `yaml:"log"`
}

// Load reads the config file at path and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Listen: ":8080",
		JWT:    JWTConfig{Expiry: 24 * time.Hour},
		Gateway: GatewayConfig{
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{TTL: 30 * time.Second},
		Log:   LogConfig{Level: "info"},
	}

	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("config: database dsn is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt secret is required")
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file values.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CARTAO_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_DATABASE_DSN")); v != "" {
		cfg.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_GATEWAY_BASE_URL")); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_GATEWAY_API_KEY")); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_GATEWAY_WEBHOOK_SECRET")); v != "" {
		cfg.Gateway.WebhookSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_KAFKA_BROKERS")); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv("CARTAO_LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
}
