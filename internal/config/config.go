// Package config loads service configuration from a YAML file with
// environment-variable override.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/legacykeep/chat-store/internal/logger"
)

type AppConf struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
}

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type AuthConf struct {
	// Keys maps key id -> HMAC secret so tokens survive rotation; the
	// ActiveKid names the signing key for newly issued tokens.
	Keys      map[string]string `mapstructure:"keys"`
	ActiveKid string            `mapstructure:"active_kid"`
	TokenTTL  int               `mapstructure:"token_ttl_hours"`
}

type ExpiryConf struct {
	SweepSeconds      int `mapstructure:"sweep_seconds"`
	SessionTTLSeconds int `mapstructure:"session_ttl_seconds"`
}

type RateLimitConf struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Mongo     MongoConf     `mapstructure:"mongodb"`
	Redis     RedisConf     `mapstructure:"redis"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	Auth      AuthConf      `mapstructure:"auth"`
	Expiry    ExpiryConf    `mapstructure:"expiry"`
	RateLimit RateLimitConf `mapstructure:"rate_limit"`
	Log       logger.Config `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration
	SessionTTL      time.Duration
	TokenTTL        time.Duration
}

// Load reads the config file at path. Environment variables override
// file values (CHATSTORE_MONGODB_URI overrides mongodb.uri).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CHATSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8084
	}
	if cfg.App.ShutdownSeconds == 0 {
		cfg.App.ShutdownSeconds = 15
	}
	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongodb.uri must be set")
	}
	if cfg.Expiry.SweepSeconds == 0 {
		cfg.Expiry.SweepSeconds = 60
	}
	if cfg.Expiry.SessionTTLSeconds == 0 {
		cfg.Expiry.SessionTTLSeconds = 300
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 30
	}

	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.SweepInterval = time.Duration(cfg.Expiry.SweepSeconds) * time.Second
	cfg.SessionTTL = time.Duration(cfg.Expiry.SessionTTLSeconds) * time.Second
	cfg.TokenTTL = time.Duration(cfg.Auth.TokenTTL) * time.Hour
	return &cfg, nil
}
