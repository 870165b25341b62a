package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sample_runs (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL,
	sample_size         INTEGER NOT NULL,
	close_pairs         INTEGER NOT NULL,
	min_distance        REAL NOT NULL,
	scaled_min_distance REAL NOT NULL,
	circle_radius       REAL NOT NULL,
	population_size     INTEGER NOT NULL,
	dropped_rows        INTEGER NOT NULL,
	seed                INTEGER NOT NULL,
	warnings            TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sample_points (
	run_id     TEXT NOT NULL REFERENCES sample_runs(id),
	seq        INTEGER NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	kind       TEXT NOT NULL,
	source_row INTEGER NOT NULL,
	anchor     INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_sample_runs_created_at ON sample_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_sample_points_run_id ON sample_points(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run and its points in one transaction. A missing ID and
// CreatedAt are filled in.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sample_runs (
			id, source, sample_size, close_pairs, min_distance,
			scaled_min_distance, circle_radius, population_size,
			dropped_rows, seed, warnings, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.SampleSize, run.ClosePairs, run.MinDistance,
		run.ScaledMinDistance, run.CircleRadius, run.PopulationSize,
		run.DroppedRows, run.Seed, string(warnings), run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for _, p := range run.Points {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sample_points (run_id, seq, x, y, kind, source_row, anchor)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, p.Seq, p.X, p.Y, p.Kind, p.SourceRow, p.Anchor,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert point %d", p.Seq)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

// GetRun returns a run with its points, or nil if no run has the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, sample_size, close_pairs, min_distance,
		       scaled_min_distance, circle_radius, population_size,
		       dropped_rows, seed, warnings, created_at
		FROM sample_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, x, y, kind, source_row, anchor
		FROM sample_points WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run points")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var p PointRecord
		if err := rows.Scan(&p.Seq, &p.X, &p.Y, &p.Kind, &p.SourceRow, &p.Anchor); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		run.Points = append(run.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate points")
	}
	return run, nil
}

// ListRuns returns the most recent runs without their points.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, sample_size, close_pairs, min_distance,
		       scaled_min_distance, circle_radius, population_size,
		       dropped_rows, seed, warnings, created_at
		FROM sample_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var run RunRecord
	var warnings sql.NullString
	err := sc.Scan(
		&run.ID, &run.Source, &run.SampleSize, &run.ClosePairs, &run.MinDistance,
		&run.ScaledMinDistance, &run.CircleRadius, &run.PopulationSize,
		&run.DroppedRows, &run.Seed, &warnings, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if warnings.Valid && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, eris.Wrap(err, "unmarshal warnings")
		}
	}
	return &run, nil
}
