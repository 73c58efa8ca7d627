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

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://items.jellyneo.net/item/%d/price-history/", cfg.IDB.URLTemplate)
	assert.Equal(t, 30*time.Second, cfg.IDB.Timeout)
	assert.Equal(t, 3, cfg.IDB.MaxAttempts)
	assert.Equal(t, time.Second, cfg.IDB.MinWait)
	assert.Equal(t, 3*time.Second, cfg.IDB.MaxWait)
	assert.Empty(t, cfg.IDB.Proxies)
	assert.Equal(t, 4, cfg.IDB.MaxWorkers)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 2*time.Minute, cfg.Redis.MinIdleTime)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
idb:
  max_attempts: 5
  min_wait: 250ms
  max_wait: 2s
  proxies:
    - http://10.0.0.1:8080
    - http://10.0.0.2:8080
redis:
  consumer_group: pricing
metrics:
  addr: ":9090"
`)
	t.Setenv("IDB_MAX_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.IDB.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.IDB.MinWait)
	assert.Equal(t, []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080"}, cfg.IDB.Proxies)
	assert.Equal(t, 8, cfg.IDB.MaxWorkers)
	assert.Equal(t, "pricing", cfg.Redis.ConsumerGroup)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "idb:\n  min_wait: 5s\n  max_wait: 1s\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "idb.min_wait")
}

func validConfig() Config {
	return Config{
		IDB: IDBConfig{
			URLTemplate:          "https://items.jellyneo.net/item/%d/price-history/",
			Timeout:              time.Second,
			MaxAttempts:          3,
			MinWait:              time.Second,
			MaxWait:              3 * time.Second,
			MaxRequestsPerSecond: 2,
			MaxWorkers:           4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "equal waits", mutate: func(c *Config) { c.IDB.MinWait, c.IDB.MaxWait = 0, 0 }},
		{name: "no verb", mutate: func(c *Config) { c.IDB.URLTemplate = "https://items.jellyneo.net/item/" }, wantErr: "url_template"},
		{name: "two verbs", mutate: func(c *Config) { c.IDB.URLTemplate = "https://x.test/%d/%d" }, wantErr: "url_template"},
		{name: "string verb", mutate: func(c *Config) { c.IDB.URLTemplate = "https://x.test/%s" }, wantErr: "url_template"},
		{name: "relative", mutate: func(c *Config) { c.IDB.URLTemplate = "/item/%d/" }, wantErr: "absolute"},
		{name: "ftp", mutate: func(c *Config) { c.IDB.URLTemplate = "ftp://x.test/%d" }, wantErr: "absolute"},
		{name: "zero attempts", mutate: func(c *Config) { c.IDB.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "zero timeout", mutate: func(c *Config) { c.IDB.Timeout = 0 }, wantErr: "timeout"},
		{name: "negative wait", mutate: func(c *Config) { c.IDB.MinWait = -time.Second }, wantErr: "negative"},
		{name: "min above max", mutate: func(c *Config) { c.IDB.MinWait = 5 * time.Second }, wantErr: "exceeds"},
		{name: "zero workers", mutate: func(c *Config) { c.IDB.MaxWorkers = 0 }, wantErr: "max_workers"},
		{name: "zero rate", mutate: func(c *Config) { c.IDB.MaxRequestsPerSecond = 0 }, wantErr: "max_requests_per_second"},
		{name: "negative requeues", mutate: func(c *Config) { c.Redis.MaxRequeues = -1 }, wantErr: "max_requeues"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
