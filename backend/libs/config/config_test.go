package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

type sample struct {
	Name    string  `yaml:"name" env:"SAMPLE_NAME"`
	Rate    int     `yaml:"rate"`
	Enabled bool    `yaml:"enabled"`
	Ratio   float64 `yaml:"ratio"`
	Store   nested  `yaml:"store"`
	Skipped string  `yaml:"skipped" env:"-"`
}

type validated struct {
	Port string `yaml:"port" env:"VALIDATED_PORT"`
}

func (v *validated) Validate() error {
	if v.Port == "" {
		return errors.New("port required")
	}
	return nil
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-file
rate: 20
store:
  addr: redis:6379
  interval: 2s
`), 0o600))

	t.Setenv("SAMPLE_NAME", "from-env")
	t.Setenv("ENABLED", "true")
	t.Setenv("STORE_INTERVAL", "500ms")
	t.Setenv("SKIPPED", "ignored")

	var cfg sample
	require.NoError(t, LoadConfigFile(path, &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 20, cfg.Rate)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "redis:6379", cfg.Store.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.Interval)
	assert.Empty(t, cfg.Skipped)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	require.Error(t, LoadConfigFile("", nil))

	var notStruct int
	require.Error(t, LoadConfigFile("", &notStruct))

	t.Setenv("RATE", "twenty")
	var cfg sample
	err := LoadConfigFile("", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE")
}

func TestLoadConfigRunsValidator(t *testing.T) {
	var cfg validated
	err := LoadConfigFile("", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port required")

	t.Setenv("VALIDATED_PORT", "9000")
	require.NoError(t, LoadConfigFile("", &cfg))
	assert.Equal(t, "9000", cfg.Port)
}
