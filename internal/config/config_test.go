package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	exp := c.Experiment()
	require.NoError(t, exp.Validate())
	assert.Equal(t, 4, exp.Products())
	assert.Equal(t, model.Pair{Product: 0, Conditioning: 0}, exp.Pair)
	assert.Equal(t, estimate.ConstraintMonotone, exp.Estimation.Constraint)
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "exp.yaml", `
study:
  runs: 3
selection:
  strong_hierarchy: false
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Study.Runs)
	assert.Equal(t, 10, c.Study.GridPoints)
	assert.False(t, c.Selection.StrongHierarchy)
	assert.Equal(t, 5, c.Selection.Folds)
	assert.Equal(t, -0.4, c.Simulation.PriceCoefficient)
}

func TestLoadBaseFileRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
simulation:
  markets: 400
study:
  runs: 7
  grid_points: 20
`)
	path := writeFile(t, dir, "exp.yaml", `
base_file: base.yaml
study:
  runs: 2
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "base.yaml", c.BaseFile)
	assert.Equal(t, 400, c.Simulation.Markets)
	assert.Equal(t, 2, c.Study.Runs)
	assert.Equal(t, 20, c.Study.GridPoints)
}

func TestLoadMissingBaseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "exp.yaml", "base_file: nope.yaml\n")
	_, err := LoadUnchecked(path)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero runs", func(c *Config) { c.Study.Runs = 0 }},
		{"bad constraint", func(c *Config) { c.Estimation.Constraint = "convex" }},
		{"pair outside products", func(c *Config) { c.Elasticity.Product = 5 }},
		{"zero price coefficient", func(c *Config) { c.Simulation.PriceCoefficient = 0 }},
		{"unordered quantiles", func(c *Config) { c.Report.Low = 0.6 }},
		{"quantile above one", func(c *Config) { c.Report.High = 1.5 }},
		{"one fold", func(c *Config) { c.Selection.Folds = 1 }},
		{"single product", func(c *Config) { c.Simulation.Products = 1; c.Simulation.Blocks = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateNamesYAMLKeys(t *testing.T) {
	c := Default()
	c.Study.GridPoints = 1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "study.grid_points")
}

func TestShippedConfigsLoad(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "quick.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500, c.Simulation.Markets)
	assert.Equal(t, 4, c.Study.Runs)
	assert.Equal(t, 10, c.Study.GridPoints)
}

func TestLoadServer(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("EXPERIMENT_CACHE_TTL", "5m")
	t.Setenv("API_ENV", "production")

	s, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "9090", s.Port)
	assert.Equal(t, 5*time.Minute, s.CacheTTL)
	assert.Equal(t, 500, s.MaxRuns)
	assert.True(t, s.Production())

	t.Setenv("MAX_RUNS", "0")
	_, err = LoadServer()
	assert.Error(t, err)
}
