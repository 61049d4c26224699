package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Jobs     JobsConfig
	Kafka    KafkaConfig
	Telegram TelegramConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	TLSCert         string
	TLSKey          string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// URL is empty when assessments are kept in memory only.
	URL string
}

type AuthConfig struct {
	TokenKey  string
	RateLimit float64
	RateBurst int
}

type EngineConfig struct {
	SolverURL        string
	SolverTimeout    time.Duration
	MaterialFallback bool
}

type JobsConfig struct {
	Workers   int
	QueueSize int
	ResultTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TelegramConfig struct {
	Token  string
	ChatID string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", "5s")
	v.SetDefault("SOLVER_TIMEOUT", "10s")
	v.SetDefault("MATERIAL_FALLBACK", false)
	v.SetDefault("WORKER_COUNT", 4)
	v.SetDefault("QUEUE_SIZE", 64)
	v.SetDefault("RESULT_TTL", "1h")
	v.SetDefault("RATE_LIMIT", 1.0)
	v.SetDefault("RATE_BURST", 3)
	v.SetDefault("KAFKA_TOPIC", "structural-assessments")
	v.AutomaticEnv()
	return v
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			Env:             v.GetString("ENV"),
			LogLevel:        v.GetString("LOG_LEVEL"),
			TLSCert:         v.GetString("TLS_CERT"),
			TLSKey:          v.GetString("TLS_KEY"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{URL: v.GetString("DATABASE_URL")},
		Auth: AuthConfig{
			TokenKey:  v.GetString("TOKEN_KEY"),
			RateLimit: v.GetFloat64("RATE_LIMIT"),
			RateBurst: v.GetInt("RATE_BURST"),
		},
		Engine: EngineConfig{
			SolverURL:        v.GetString("SOLVER_URL"),
			SolverTimeout:    v.GetDuration("SOLVER_TIMEOUT"),
			MaterialFallback: v.GetBool("MATERIAL_FALLBACK"),
		},
		Jobs: JobsConfig{
			Workers:   v.GetInt("WORKER_COUNT"),
			QueueSize: v.GetInt("QUEUE_SIZE"),
			ResultTTL: v.GetDuration("RESULT_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Telegram: TelegramConfig{
			Token:  v.GetString("TELEGRAM_TOKEN"),
			ChatID: v.GetString("TELEGRAM_CHAT_ID"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("PORT is required")
	}
	if c.Auth.TokenKey == "" {
		return errors.New("TOKEN_KEY is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Engine.SolverURL != "" && c.Engine.SolverTimeout <= 0 {
		return errors.New("SOLVER_TIMEOUT must be positive when SOLVER_URL is set")
	}
	if c.Jobs.Workers < 1 {
		return errors.New("WORKER_COUNT must be at least 1")
	}
	if c.Jobs.QueueSize < 1 {
		return errors.New("QUEUE_SIZE must be at least 1")
	}
	if c.Jobs.ResultTTL <= 0 {
		return errors.New("RESULT_TTL must be positive")
	}
	if c.Auth.RateLimit <= 0 || c.Auth.RateBurst < 1 {
		return errors.New("RATE_LIMIT must be positive and RATE_BURST at least 1")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		return errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

func (c *Config) TLSEnabled() bool { return c.Server.TLSCert != "" }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
