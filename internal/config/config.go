package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	SeedDemoData          bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AMQPURL               string
	AMQPExchange          string
	AuthSecret            string
	AccessTokenTTLMinutes int
	ActionTTLMinutes      int
	LogLevel              string
	DefaultLanguage       string
	Currency              string
}

// Load reads ./configs/config.yaml when present and lets environment
// variables override it.
func Load() (Config, error) {
	return LoadFrom("./configs")
}

func LoadFrom(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("seed_demo_data", false)
	v.SetDefault("redis_db", 0)
	v.SetDefault("amqp_exchange", "backoffice.actions")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("action_ttl_minutes", 24*60)
	v.SetDefault("log_level", "info")
	v.SetDefault("default_language", "ar")
	v.SetDefault("currency", "SAR")

	// Secrets and connection strings have no defaults; they are bound so
	// that the environment alone can supply them.
	for _, key := range []string{"database_url", "redis_addr", "redis_password", "amqp_url", "auth_secret"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Port:                  v.GetString("port"),
		AllowedOrigin:         v.GetString("allowed_origin"),
		DatabaseURL:           v.GetString("database_url"),
		SeedDemoData:          v.GetBool("seed_demo_data"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		AMQPURL:               v.GetString("amqp_url"),
		AMQPExchange:          v.GetString("amqp_exchange"),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: v.GetInt("access_token_ttl_minutes"),
		ActionTTLMinutes:      v.GetInt("action_ttl_minutes"),
		LogLevel:              v.GetString("log_level"),
		DefaultLanguage:       v.GetString("default_language"),
		Currency:              strings.ToUpper(strings.TrimSpace(v.GetString("currency"))),
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.ActionTTLMinutes < 1 {
		cfg.ActionTTLMinutes = 24 * 60
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) ActionTTL() time.Duration {
	return time.Duration(c.ActionTTLMinutes) * time.Minute
}
