package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, time.Minute, cfg.Engine.RecoveryInterval())
	assert.Equal(t, 15*time.Minute, cfg.Engine.OffHoursDelayCap())
	assert.Equal(t, 3, cfg.Engine.RetryMaxAttempts)
	assert.Equal(t, time.Hour, cfg.Engine.AssignmentTTL())
	assert.Equal(t, 30*time.Second, cfg.Senders.Webhook.Timeout())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 9090
log_level: debug
engine:
  recovery_scan_seconds: 30
  retry_max_attempts: 5
senders:
  push:
    endpoint: http://gateway:9801/push
    timeout_seconds: 3
severity:
  overrides:
    critical:
      escalation_interval: 3
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Engine.RecoveryInterval())
	assert.Equal(t, 5, cfg.Engine.RetryMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Senders.Push.Timeout())

	patch, ok := cfg.Severity.Overrides["critical"]
	require.True(t, ok)
	require.NotNil(t, patch.EscalationInterval)
	assert.Equal(t, 3, *patch.EscalationInterval)
}

func TestLoadFileRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "port: -1\n")
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "invalid port")
}

func TestLoadFileRejectsUnknownSeverityOverride(t *testing.T) {
	path := writeConfig(t, `
severity:
  overrides:
    urgent:
      escalation_interval: 1
`)
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "unknown severity in overrides")
}

func TestLoadFileRejectsNonPositiveRecoveryScan(t *testing.T) {
	path := writeConfig(t, "engine:\n  recovery_scan_seconds: 0\n")
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "recovery_scan_seconds must be positive")
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGatewayTimeoutDefault(t *testing.T) {
	var g GatewayConfig
	assert.Equal(t, 10*time.Second, g.Timeout())
}
