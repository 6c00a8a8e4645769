package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kiwari-pos/monitor/internal/printing"
)

// Config is the full monitor configuration, loaded from a YAML file with
// env overrides for secrets.
type Config struct {
	Server  Server                   `yaml:"server" validate:"required"`
	Auth    Auth                     `yaml:"auth" validate:"required"`
	Poll    Poll                     `yaml:"poll"`
	Printer printing.Config          `yaml:"printer" validate:"required"`
	Receipt printing.ReceiptSettings `yaml:"receipt"`
	Logger  Logger                   `yaml:"logger"`
}

// Server locates the POS API and its push endpoint.
type Server struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	StreamURL string        `yaml:"stream_url" validate:"required"`
	Timeout   time.Duration `yaml:"timeout"`
	Reconnect bool          `yaml:"reconnect"`
}

// Auth carries the session token and the shared signing secret used to
// validate it locally. Both can be overridden from the environment.
type Auth struct {
	Token     string `yaml:"token" validate:"required"`
	JWTSecret string `yaml:"jwt_secret" validate:"required"`
}

// Poll sets the fixed intervals of the fallback pollers.
type Poll struct {
	TableRequests time.Duration `yaml:"table_requests"`
	Settings      time.Duration `yaml:"settings"`
}

// Logger configures the log level.
type Logger struct {
	Level string `yaml:"level"`
}

var validate = validator.New()

// MustLoad loads and validates the config at path, exiting on any error.
func MustLoad(path string) *Config {
	if path == "" {
		log.Fatal("config path is not set")
	}

	file, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read config file: %s", err)
	}

	cfg, err := parse(file)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	return cfg
}

// parse decodes, applies env overrides and defaults, and validates.
func parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Auth.Token = getEnv("MONITOR_TOKEN", cfg.Auth.Token)
	cfg.Auth.JWTSecret = getEnv("MONITOR_JWT_SECRET", cfg.Auth.JWTSecret)

	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 10 * time.Second
	}
	if cfg.Poll.TableRequests == 0 {
		cfg.Poll.TableRequests = 15 * time.Second
	}
	if cfg.Poll.Settings == 0 {
		cfg.Poll.Settings = time.Minute
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
