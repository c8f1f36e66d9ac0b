package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"arxcore/core/reconcile"
	"arxcore/core/resolve"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ".arxcore", cfg.Repo.Dir)
	assert.Equal(t, "arxcore", cfg.Repo.Author)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Reconcile.Workers)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.ExtractTimeout)
	assert.Equal(t, 5, cfg.Reconcile.DisableAfter)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REPO_BUILDING", "hq-tower")
	t.Setenv("RECONCILE_BACKOFF_MAX", "1m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "hq-tower", cfg.Repo.Building)
	assert.Equal(t, time.Minute, cfg.Reconcile.BackoffMax)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "DATABASE_DRIVER=mysql\nDATABASE_HOST=db.internal\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_DRIVER")
		os.Unsetenv("DATABASE_HOST")
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	doc := `[
		{"name": "bim", "locator": "bimjson:///exports/hq", "policy": "bidirectional",
		 "priority": 0, "interval": "30m", "strategy": "three-way"},
		{"name": "scans", "locator": "fieldscan:///feeds/walkthrough.jsonl", "policy": "read-only",
		 "priority": 5}
	]`
	path := filepath.Join(dir, "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "bim", sources[0].Name)
	assert.Equal(t, reconcile.PolicyBidirectional, sources[0].Policy)
	assert.Equal(t, 30*time.Minute, sources[0].Interval)

	// Omitted interval and strategy fall back to defaults.
	assert.Equal(t, 15*time.Minute, sources[1].Interval)
	assert.Equal(t, resolve.StrategyThreeWay, sources[1].Strategy)
	assert.Equal(t, 5, sources[1].Priority)
}

func TestLoadSources_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSources(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"name": "x", "locator": "y", "policy": "sideways"}]`), 0o644))
	_, err = LoadSources(bad)
	assert.Error(t, err)

	badInterval := filepath.Join(dir, "interval.json")
	require.NoError(t, os.WriteFile(badInterval,
		[]byte(`[{"name": "x", "locator": "bimjson:///y", "policy": "read-only", "interval": "soon"}]`), 0o644))
	_, err = LoadSources(badInterval)
	assert.Error(t, err)
}
