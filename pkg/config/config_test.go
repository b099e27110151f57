package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Aggregator.RefreshInterval)
	assert.Equal(t, 3*time.Minute, cfg.Aggregator.StalenessThreshold)
	assert.Equal(t, 60*time.Second, cfg.Aggregator.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.Aggregator.ProviderTimeout)
	assert.Equal(t, 4, cfg.Aggregator.ProviderConcurrency)
	assert.Empty(t, cfg.Aggregator.AppFilter)
	assert.Equal(t, "controls:snapshot:fallback", cfg.Redis.Key)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REFRESH_INTERVAL", "10m")
	t.Setenv("STALENESS_THRESHOLD", "7m")
	t.Setenv("APP_FILTER", " app1, ,app2 ")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.Security.TrustedProxies)
	assert.Equal(t, 10*time.Minute, cfg.Aggregator.RefreshInterval)
	assert.Equal(t, 7*time.Minute, cfg.Aggregator.StalenessThreshold)
	assert.Equal(t, []string{"app1", "app2"}, cfg.Aggregator.AppFilter)
	assert.True(t, cfg.Redis.Enabled)
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "controls_prod")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, 10, cfg.Postgres.Retention)
	assert.Equal(t,
		"host=db.internal port=5432 user=postgres password=postgres dbname=controls_prod sslmode=disable",
		cfg.Postgres.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration":          {"REFRESH_INTERVAL": "often"},
		"staleness not shorter": {"REFRESH_INTERVAL": "2m", "STALENESS_THRESHOLD": "2m"},
		"zero concurrency":      {"PROVIDER_CONCURRENCY": "0"},
		"auth without token":    {"AUTH_ENABLED": "true"},
		"non-numeric redis db":  {"REDIS_DB": "first"},
		"two fallback backends": {"REDIS_ENABLED": "true", "POSTGRES_FALLBACK_ENABLED": "true"},
		"bad trusted proxy":     {"TRUSTED_PROXIES": "10.0.0.0/8,proxy.internal"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("COST_DSN", "postgres://reader@db/costs")
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - id: code_quality_v1
    type: csv
    path: data/quality.csv
  - id: cost
    type: SQL
    dsn: ${COST_DSN}
    query: SELECT app_id, monthly_cost FROM costs WHERE app_id IN :app_ids
    timeout: 30s
  - id: ops
    type: prometheus
    url: http://prometheus:9090
    queries:
      UptimePercentage: avg_over_time(up[30d]) * 100
`), 0o600))

	providers, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, providers, 3)

	assert.Equal(t, port.SourceCSV, providers[0].Source.Kind)
	assert.Equal(t, port.SourceSQL, providers[1].Source.Kind)
	assert.Equal(t, "postgres://reader@db/costs", providers[1].Source.DSN)
	assert.Equal(t, 30*time.Second, providers[1].Source.Timeout)
	assert.Equal(t, "avg_over_time(up[30d]) * 100", providers[2].Source.Queries["UptimePercentage"])
}

func TestLoadProviders_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown type": "providers:\n  - id: a\n    type: excel\n",
		"missing id":   "providers:\n  - type: csv\n",
		"duplicate":    "providers:\n  - id: a\n    type: csv\n  - id: a\n    type: json\n",
		"bad timeout":  "providers:\n  - id: a\n    type: csv\n    timeout: soon\n",
		"not yaml":     "providers: [",
		"bare filter":  "providers:\n  - id: a\n    type: sql\n    query: 'SELECT app_id FROM t WHERE app_id = :app_ids'\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "providers.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := LoadProviders(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadProviders(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	defs, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, defs)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: coverage_floor
    fail: fields.TestCoverage < 50
    fail_reason: coverage below 50%
    warn: fields.TestCoverage < 70
`), 0o600))

	defs, err = LoadRules(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "coverage_floor", defs[0].ID)
	assert.Equal(t, "fields.TestCoverage < 50", defs[0].Fail)
	assert.Equal(t, "coverage below 50%", defs[0].FailReason)
}
