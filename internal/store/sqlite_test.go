package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRun() *RunRecord {
	return &RunRecord{
		Source:            "buildings.csv",
		SampleSize:        50,
		ClosePairs:        5,
		MinDistance:       20,
		ScaledMinDistance: 21.08,
		CircleRadius:      10,
		PopulationSize:    1000,
		DroppedRows:       2,
		Seed:              42,
		Warnings:          []string{"2 rows dropped for missing coordinate values"},
		Points: []PointRecord{
			{Seq: 0, X: 101.5, Y: 230.25, Kind: "primary", SourceRow: 17, Anchor: -1},
			{Seq: 1, X: 410.0, Y: 88.0, Kind: "primary", SourceRow: 204, Anchor: -1},
			{Seq: 2, X: 103.1, Y: 233.9, Kind: "close_pair", SourceRow: -1, Anchor: 0},
		},
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)
	require.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, run.SampleSize, got.SampleSize)
	assert.Equal(t, run.ClosePairs, got.ClosePairs)
	assert.Equal(t, run.ScaledMinDistance, got.ScaledMinDistance)
	assert.Equal(t, run.Warnings, got.Warnings)
	require.Len(t, got.Points, 3)
	assert.Equal(t, run.Points[2], got.Points[2])
}

func TestSQLiteStore_GetRunMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.Seed = int64(i)
		require.NoError(t, s.SaveRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// List omits points.
	assert.Empty(t, all[0].Points)
}

func TestSQLiteStore_SaveRunDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))

	dup := sampleRun()
	dup.ID = run.ID
	require.Error(t, s.SaveRun(ctx, dup))
}
