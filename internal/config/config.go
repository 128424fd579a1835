package config

import (
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
)

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Database Database          `mapstructure:"database" yaml:"database"`
	Cache    CacheConfig       `mapstructure:"cache" yaml:"cache"`
	CORS     CORSConfig        `mapstructure:"cors" yaml:"cors"`
	Engine   EngineConfig      `mapstructure:"engine" yaml:"engine"`
	Senders  SendersConfig     `mapstructure:"senders" yaml:"senders"`
	Severity SeverityOverrides `mapstructure:"severity" yaml:"severity"`
}

// Database holds the MySQL-protocol store the engine persists to.
type Database struct {
	Host     string            `mapstructure:"host" yaml:"host"`
	Port     int               `mapstructure:"port" yaml:"port"`
	User     string            `mapstructure:"user" yaml:"user"`
	Password string            `mapstructure:"password" yaml:"password"`
	Name     string            `mapstructure:"name" yaml:"name"`
	TLS      bool              `mapstructure:"tls" yaml:"tls"`
	Params   map[string]string `mapstructure:"params" yaml:"params"`
}

// CacheConfig handles Valkey caching configuration.
type CacheConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// EngineConfig tunes the escalation machinery.
type EngineConfig struct {
	// RecoveryScanSeconds is the period of the overdue-alert recovery
	// scan that backstops in-process timers across restarts.
	RecoveryScanSeconds int `mapstructure:"recovery_scan_seconds" yaml:"recovery_scan_seconds"`
	// OffHoursDelayCapMinutes caps the first escalation delay when the
	// alert lands outside business hours but policy still permits
	// off-hours escalation.
	OffHoursDelayCapMinutes int `mapstructure:"off_hours_delay_cap_minutes" yaml:"off_hours_delay_cap_minutes"`
	// RetryMaxAttempts bounds operator-driven redelivery of a failed
	// notification.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	// AssignmentTTLSeconds is the team-assignment cache TTL; 0 means
	// cache until explicit invalidation.
	AssignmentTTLSeconds int `mapstructure:"assignment_ttl_seconds" yaml:"assignment_ttl_seconds"`
	// TeamOverridesPath optionally points at a YAML file with per-team
	// business hours and escalation chain overrides.
	TeamOverridesPath string `mapstructure:"team_overrides_path" yaml:"team_overrides_path"`
}

func (e EngineConfig) RecoveryInterval() time.Duration {
	return time.Duration(e.RecoveryScanSeconds) * time.Second
}

func (e EngineConfig) OffHoursDelayCap() time.Duration {
	return time.Duration(e.OffHoursDelayCapMinutes) * time.Minute
}

func (e EngineConfig) AssignmentTTL() time.Duration {
	return time.Duration(e.AssignmentTTLSeconds) * time.Second
}

// SendersConfig configures the low-level transports behind the channel
// senders. Push and SMS deliveries go through external gateway services;
// the engine only sees their success/failure outcome.
type SendersConfig struct {
	Email   EmailSenderConfig `mapstructure:"email" yaml:"email"`
	Push    GatewayConfig     `mapstructure:"push" yaml:"push"`
	SMS     GatewayConfig     `mapstructure:"sms" yaml:"sms"`
	Webhook WebhookConfig     `mapstructure:"webhook" yaml:"webhook"`
}

type EmailSenderConfig struct {
	SMTPHost    string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`
}

// GatewayConfig points at an HTTP gateway that performs the actual
// push-notification or SMS delivery.
type GatewayConfig struct {
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	AuthToken      string `mapstructure:"auth_token" yaml:"auth_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type WebhookConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

func (w WebhookConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// SeverityOverrides carries per-severity policy patches applied on top
// of the built-in severity table at startup and on config reload.
type SeverityOverrides struct {
	Overrides map[string]models.SeverityConfigPatch `mapstructure:"overrides" yaml:"overrides"`
}
