package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/survey-cli/internal/export"
	"github.com/sells-group/survey-cli/internal/store"
)

func TestWriteSimulatedPopulation(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	require.NoError(t, writeSimulatedPopulation(a, 200, 500, 500, 7))
	require.NoError(t, writeSimulatedPopulation(b, 200, 500, 500, 7))

	// Same seed, same population.
	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	pop, xIdx, yIdx, err := loadPopulation(a, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, 0, xIdx)
	assert.Equal(t, 1, yIdx)
	assert.Equal(t, []string{"x", "y", "id"}, pop.Columns)
	require.Len(t, pop.Rows, 200)
	for _, row := range pop.Rows {
		assert.LessOrEqual(t, row[0], 500.0)
		assert.LessOrEqual(t, row[1], 500.0)
	}
}

func TestSampleCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, writeSimulatedPopulation("pop.csv", 500, 1000, 1000, 3))

	rootCmd.SetArgs([]string{
		"sample",
		"--input", "pop.csv",
		"--size", "20",
		"--min-distance", "15",
		"--close-pairs", "2",
		"--circle-radius", "5",
		"--seed", "11",
		"--output", "out.csv",
		"--manifest", "manifest.yaml",
	})
	require.NoError(t, rootCmd.Execute())

	// Sampled rows: header plus one line per point.
	data, err := os.ReadFile("out.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 21)
	assert.Equal(t, "x,y,id", lines[0])

	// Manifest records the enforced parameters and the run ID.
	var m export.Manifest
	mdata, err := os.ReadFile("manifest.yaml")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(mdata, &m))
	assert.Equal(t, "pop.csv", m.Source)
	assert.Equal(t, int64(11), m.Request.Seed)
	assert.Equal(t, 18, m.PrimaryCount)
	assert.GreaterOrEqual(t, m.ScaledMinDistance, 15.0)
	require.NotEmpty(t, m.RunID)

	// The run landed in the default run log.
	s, err := store.NewSQLite("survey.db")
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(context.Background(), m.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 20, run.SampleSize)
	assert.Len(t, run.Points, 20)
}
