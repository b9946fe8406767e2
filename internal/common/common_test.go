package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:9000", cfg.ClickHouseAddr())
	assert.Equal(t, filepath.Join(cfg.ModelDir, "model.json.gz"), cfg.ModelPath())
	assert.Nil(t, cfg.SeedPtr())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.ClickHousePort = 0 }},
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"zero window", func(c *Config) { c.Window = -1 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 27, cfg.Horizon)
	assert.Equal(t, "mean7", cfg.Mode)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kp.yaml")
	yaml := "horizon: 14\nmode: ar1\nseed: 42\nclickhouse_host: db.lab\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	t.Setenv("KI7MT_MODE", "trend")
	t.Setenv("CLICKHOUSE_DATABASE", "wx")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Horizon)
	assert.Equal(t, "trend", cfg.Mode)
	assert.Equal(t, "db.lab", cfg.ClickHouseHost)
	assert.Equal(t, "wx", cfg.ClickHouseDatabase)
	require.NotNil(t, cfg.SeedPtr())
	assert.Equal(t, int64(42), *cfg.SeedPtr())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("KI7MT_HORIZON", "0")
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	_, err = NewLogger(&buf, "loud", "json")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	s := NewStats()
	s.AddRows(27)
	s.OnModelCall()
	s.OnModelCall()
	s.AddForecast(3)

	assert.Equal(t, uint64(27), s.GetTotalRows())
	assert.Equal(t, uint64(2), s.GetModelCalls())
	assert.Equal(t, uint64(3), s.MissingValues)

	var buf bytes.Buffer
	s.Log(zerolog.New(&buf))
	assert.Contains(t, buf.String(), `"model_calls":2`)
}
