package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tasknest/tasknest/config"
)

// InitLogger sets up the process-wide JSON logger. The log level can be
// raised with APP_LOG_LEVEL=debug for local troubleshooting.
func InitLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("APP_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads configuration from the environment, optionally seeded
// from a .env file during development, and sanitizes the result.
func LoadConfig() (config.AppConfig, error) {
	var cfg config.AppConfig

	// A missing .env file is normal outside development; any other read
	// failure is a real problem.
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return cfg, fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects configurations that would start nothing.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// GetEnabledServices lists the enabled service names for startup logging.
// Invalid configs yield an empty list; ValidateServiceConfig reports those.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return nil
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(services))
	for svc := range services {
		names = append(names, string(svc))
	}
	return names
}
