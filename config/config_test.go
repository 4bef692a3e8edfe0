package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kopisort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	file := writeFile(t, `
run_address: ":9090"
database_uri: "postgres://file/kopisort"
log_level: warn
events_driver: kafka
kafka_brokers: ["k1:9092", "k2:9092"]
retry_base_delay: 250ms
rabbitmq_exchange: beans_file
`)

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8080", cfg.ServerAddr)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "none", cfg.EventsDriver)
				assert.Equal(t, 3, cfg.RetryAttempts)
				assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
				assert.Equal(t, "Asia/Jakarta", cfg.TimeZone)
				assert.Equal(t, "kopisort_notifications", cfg.RabbitExchange)
			},
		},
		{
			name: "file_values",
			args: []string{"-c", file},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":9090", cfg.ServerAddr)
				assert.Equal(t, "postgres://file/kopisort", cfg.DatabaseDSN)
				assert.Equal(t, "kafka", cfg.EventsDriver)
				assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
				assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
				assert.Equal(t, 3, cfg.RetryAttempts)
				assert.Equal(t, "beans_file", cfg.RabbitExchange)
			},
		},
		{
			name: "flags_override_file",
			args: []string{"-c", file, "-a", ":7070", "-retry-attempts", "5"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":7070", cfg.ServerAddr)
				assert.Equal(t, 5, cfg.RetryAttempts)
				assert.Equal(t, "warn", cfg.LogLevel)
			},
		},
		{
			name: "env_overrides_flags",
			args: []string{"-a", ":7070", "-d", "postgres://flag/kopisort"},
			env: map[string]string{
				"RUN_ADDRESS":       ":6060",
				"KAFKA_BROKERS":     "a:9092, b:9092,",
				"RETRY_BASE_DELAY":  "1s",
				"RABBITMQ_EXCHANGE": "beans_env",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":6060", cfg.ServerAddr)
				assert.Equal(t, "postgres://flag/kopisort", cfg.DatabaseDSN)
				assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
				assert.Equal(t, time.Second, cfg.RetryBaseDelay)
				assert.Equal(t, "beans_env", cfg.RabbitExchange)
			},
		},
		{
			name:    "bad_retry_attempts",
			env:     map[string]string{"RETRY_MAX_ATTEMPTS": "three"},
			wantErr: true,
		},
		{
			name:    "zero_retry_attempts",
			args:    []string{"-retry-attempts", "0"},
			wantErr: true,
		},
		{
			name:    "unknown_time_zone",
			env:     map[string]string{"TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "missing_file",
			args:    []string{"-c", filepath.Join(t.TempDir(), "absent.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := New(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
