package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, time.Duration(0), cfg.Reconcile.Interval)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	cfg, err := Load(nil, envMap(map[string]string{
		"ENV":                  "production",
		"DB_DRIVER":            "sqlite",
		"SQLITE_PATH":          "/var/lib/library.db",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example ,",
		"RATE_LIMIT_RPS":       "2.5",
		"RATE_LIMIT_BURST":     "5",
		"RECONCILE_INTERVAL":   "15m",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/library.db", cfg.Database.SQLitePath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 2.5, cfg.RateLimit.RPS, 0.0001)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 15*time.Minute, cfg.Reconcile.Interval)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	cfg, err := Load(
		[]string{"-port", "9090", "-db-driver", "sqlite", "-log-level", "debug"},
		envMap(map[string]string{"PORT": "7070", "DB_DRIVER": "postgres", "LOG_LEVEL": "warn"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"READ_TIMEOUT": "soon"}},
		{"bad int", map[string]string{"DB_MAX_CONNS": "many"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"zero timeout", map[string]string{"WRITE_TIMEOUT": "0s"}},
		{"negative reconcile", map[string]string{"RECONCILE_INTERVAL": "-1m"}},
		{"unknown environment", map[string]string{"ENV": "test"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"rps without burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(nil, envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg, err := Load(nil, envMap(nil))
			require.NoError(t, err)

			cfg.Logger.Level = tt.level
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "lib", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=lib sslmode=require", c.DSN())
}
