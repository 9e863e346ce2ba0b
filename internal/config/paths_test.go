package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scdash/internal/shared/testutil"
)

func TestGetPaths_Defaults(t *testing.T) {
	base := t.TempDir()

	paths, err := GetPaths(PathsConfig{BaseDir: base})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "supply_chain_data.csv"), paths.InputFile)
	assert.Equal(t, filepath.Join(base, "data", "processed_supply_chain_data.xlsx"), paths.ProcessedFile)
	assert.Equal(t, filepath.Join(base, "data", "supply_chain.db"), paths.DatabaseFile)
	assert.Equal(t, filepath.Join(base, "data", "models", "demand_forecasting_model.json"), paths.ModelFile)
	assert.Equal(t, filepath.Join(base, "data", "models"), paths.ModelsDir)
	assert.Equal(t, filepath.Join(base, "sql", "queries.sql"), paths.QueriesFile)
}

func TestGetPaths_AbsoluteOverrides(t *testing.T) {
	base := t.TempDir()
	elsewhere := t.TempDir()
	input := filepath.Join(elsewhere, "shipments.csv")

	paths, err := GetPaths(PathsConfig{BaseDir: base, InputFile: input, DataDir: "store"})
	require.NoError(t, err)

	assert.Equal(t, input, paths.InputFile)
	assert.Equal(t, filepath.Join(base, "store"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "store", "supply_chain.db"), paths.DatabaseFile)
}

func TestPaths_EnsureDirectories(t *testing.T) {
	paths, err := GetPaths(PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.LogsDir, paths.ModelsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	logger, handler := testutil.NewTestLogger(t)
	paths.LogPathResolution(logger)
	testutil.AssertLogContains(t, handler, slog.LevelDebug, "path resolution summary")
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	assert.False(t, FileExists(file))
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.True(t, FileExists(file))
}
