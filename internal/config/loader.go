package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with the usual priority order:
// 1. Environment variables (ESCALATE_*)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/escalate/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ESCALATE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadFile loads configuration from an explicit file path. Used by the
// config watcher on reload.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "escalate")

	// Cache defaults (Valkey)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})
	v.SetDefault("cors.max_age", 3600)

	// Engine defaults
	v.SetDefault("engine.recovery_scan_seconds", 60)
	v.SetDefault("engine.off_hours_delay_cap_minutes", 15)
	v.SetDefault("engine.retry_max_attempts", 3)
	v.SetDefault("engine.assignment_ttl_seconds", 3600)

	// Sender defaults
	v.SetDefault("senders.email.smtp_port", 587)
	v.SetDefault("senders.push.timeout_seconds", 10)
	v.SetDefault("senders.sms.timeout_seconds", 10)
	v.SetDefault("senders.webhook.timeout_seconds", 30)
}

func validateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Engine.RecoveryScanSeconds <= 0 {
		return fmt.Errorf("engine.recovery_scan_seconds must be positive")
	}
	if cfg.Engine.RetryMaxAttempts <= 0 {
		return fmt.Errorf("engine.retry_max_attempts must be positive")
	}
	for name := range cfg.Severity.Overrides {
		switch name {
		case "critical", "high", "medium", "low", "info":
		default:
			return fmt.Errorf("unknown severity in overrides: %q", name)
		}
	}
	return nil
}
