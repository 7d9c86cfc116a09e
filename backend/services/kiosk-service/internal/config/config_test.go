package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "charging_station", cfg.Store.Key)
	assert.Equal(t, 20, cfg.Tariff.RatePerHour)
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval)
	assert.False(t, cfg.Simulator.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: ":9090"
store:
  backend: Memory
  resetOnStart: true
tariff:
  ratePerHour: 30
simulator:
  enabled: true
`), 0o600))
	t.Setenv("KIOSK_UPI_VPA", "kiosk@upi")
	t.Setenv("KIOSK_STORE_POLL_INTERVAL", "750ms")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.True(t, cfg.Store.ResetOnStart)
	assert.Equal(t, 30, cfg.Tariff.RatePerHour)
	assert.Equal(t, 59, cfg.Tariff.MaxMinutes, "defaults survive a partial file")
	assert.Equal(t, "kiosk@upi", cfg.Payment.PayeeVPA)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.PollInterval)
	assert.True(t, cfg.Simulator.Enabled)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"backend": func(c *Config) { c.Store.Backend = "etcd" },
		"redis":   func(c *Config) { c.Redis.Addr = " " },
		"key":     func(c *Config) { c.Store.Key = "" },
		"rate":    func(c *Config) { c.Tariff.RatePerHour = 0 },
		"payee":   func(c *Config) { c.Payment.PayeeVPA = "" },
		"webdir":  func(c *Config) { c.HTTP.WebDir = filepath.Join(os.TempDir(), "kiosk-web-missing") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
