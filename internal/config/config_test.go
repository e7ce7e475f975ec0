package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDatabase, EnvCatalog, EnvLogLevel} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "roastery.db", cfg.Database)
	assert.Equal(t, "catalog", cfg.Catalog)
	assert.False(t, cfg.Engine.DefaultLossRate.Valid, "no default loss rate unless configured")
	assert.Equal(t, "0.001", cfg.Engine.RatioTolerance.Decimal.String())
	assert.Equal(t, 30*time.Second, cfg.Engine.ExecuteTimeout)
	assert.Equal(t, "RB", cfg.Engine.BatchPrefix)
	assert.Equal(t, 5*time.Second, cfg.Store.BusyTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/roastery.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "data", "roastery.db"), cfg.Database)
	assert.Equal(t, filepath.Join("testdata", "catalog"), cfg.Catalog)
	assert.True(t, cfg.Engine.DefaultLossRate.Decimal.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, "0.005", cfg.Engine.RatioTolerance.Decimal.String())
	assert.Equal(t, 10*time.Second, cfg.Engine.ExecuteTimeout)
	assert.Equal(t, "HB", cfg.Engine.BatchPrefix)
	assert.Equal(t, 2*time.Second, cfg.Store.BusyTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	ec := cfg.EngineConfig()
	assert.True(t, ec.DefaultLossRate.Valid)
	assert.Equal(t, "0.005", ec.RatioTolerance.String())
	assert.Equal(t, "HB", ec.BatchPrefix)
	assert.Len(t, cfg.StoreOptions(), 1)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "RB", cfg.Engine.BatchPrefix)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "roastery.db"), cfg.Database)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", "testdata/nope.yaml", "failed to read config file"},
		{"unknown key", "testdata/typo.yaml", "field default_loss not found"},
		{"loss rate out of range", "testdata/bad_rate.yaml", "engine.default_loss_rate"},
		{"zero ratio tolerance", "testdata/zero_tolerance.yaml", "engine.ratio_tolerance must be positive"},
		{"zero execute timeout", "testdata/zero_timeout.yaml", "engine.execute_timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabase, "/tmp/env.db")

	cfg, err := Load("testdata/roastery.yaml", "testdata/test.env")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database, "environment wins over the file")
	assert.Equal(t, "/srv/catalog", cfg.Catalog, "read from the env file")
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty database", func(c *Config) { c.Database = "" }, "database must be set"},
		{"empty catalog", func(c *Config) { c.Catalog = "" }, "catalog must be set"},
		{"negative tolerance", func(c *Config) {
			c.Engine.RatioTolerance = Decimal{decimal.NewNullDecimal(decimal.RequireFromString("-0.1"))}
		}, "ratio_tolerance"},
		{"zero tolerance", func(c *Config) {
			c.Engine.RatioTolerance = Decimal{decimal.NewNullDecimal(decimal.Zero)}
		}, "ratio_tolerance must be positive"},
		{"unset tolerance", func(c *Config) { c.Engine.RatioTolerance = Decimal{} }, "ratio_tolerance"},
		{"negative timeout", func(c *Config) { c.Engine.ExecuteTimeout = -time.Second }, "execute_timeout"},
		{"zero timeout", func(c *Config) { c.Engine.ExecuteTimeout = 0 }, "execute_timeout must be positive"},
		{"dash in prefix", func(c *Config) { c.Engine.BatchPrefix = "R-B" }, "batch_prefix"},
		{"negative busy timeout", func(c *Config) { c.Store.BusyTimeout = -time.Second }, "busy_timeout"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecimal_YAML(t *testing.T) {
	var v struct {
		Plain  Decimal `yaml:"plain"`
		Quoted Decimal `yaml:"quoted"`
		Absent Decimal `yaml:"absent"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("plain: 0.1\nquoted: \"0.25\"\n"), &v))

	assert.Equal(t, "0.1", v.Plain.Decimal.String())
	assert.Equal(t, "0.25", v.Quoted.Decimal.String())
	assert.False(t, v.Absent.Valid)

	err := yaml.Unmarshal([]byte("plain: lots\n"), &v)
	assert.ErrorContains(t, err, "is not a decimal")

	out, err := yaml.Marshal(struct {
		Rate Decimal `yaml:"rate"`
	}{Decimal{decimal.NewNullDecimal(decimal.RequireFromString("0.15"))}})
	require.NoError(t, err)
	assert.Equal(t, "rate: \"0.15\"\n", string(out))
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo,
		"warn": slog.LevelWarn, "warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
