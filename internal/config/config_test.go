package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchcluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Clustering.MaxStalledRounds)
	assert.Equal(t, 0.000005, cfg.Clustering.Budget)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
clustering:
  budget: 0.00002
  max_stalled_rounds: 25
overlap:
  basis: candidate
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.00002, cfg.Clustering.Budget)
	assert.Equal(t, 25, cfg.Clustering.MaxStalledRounds)
	assert.Equal(t, 2, cfg.Clustering.MinClusterSize, "unset keys keep defaults")
	assert.Equal(t, "candidate", cfg.Overlap.Basis)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_RejectsNonPositiveBudget(t *testing.T) {
	path := writeFile(t, "clustering:\n  budget: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Budget")
}

func TestLoad_RejectsZeroStallLimit(t *testing.T) {
	path := writeFile(t, "clustering:\n  max_stalled_rounds: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxStalledRounds")
}

func TestLoad_RejectsUnknownBasis(t *testing.T) {
	path := writeFile(t, "overlap:\n  basis: union\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "clustering: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BENCHCLUSTER_BUDGET", "0.5")
	t.Setenv("BENCHCLUSTER_MAX_STALLED_ROUNDS", "7")
	t.Setenv("BENCHCLUSTER_DB", "/tmp/runs.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Clustering.Budget)
	assert.Equal(t, 7, cfg.Clustering.MaxStalledRounds)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("BENCHCLUSTER_BUDGET", "fast")
	_, err := Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Clustering.Budget = 3

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestClusteringConfig_Engine(t *testing.T) {
	ec := Default().Clustering.Engine()
	assert.Equal(t, 500, ec.MaxStalledRounds)
	assert.NoError(t, ec.Validate())
}
