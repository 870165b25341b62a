// Package store persists sampling runs so parameter choices and drawn samples
// can be reviewed after the fact.
package store

import (
	"context"
	"time"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// RunRecord is one recorded sampling run with its drawn points.
type RunRecord struct {
	ID                string        `json:"id"`
	Source            string        `json:"source"`
	SampleSize        int           `json:"sample_size"`
	ClosePairs        int           `json:"close_pairs"`
	MinDistance       float64       `json:"min_distance"`
	ScaledMinDistance float64       `json:"scaled_min_distance"`
	CircleRadius      float64       `json:"circle_radius"`
	PopulationSize    int           `json:"population_size"`
	DroppedRows       int           `json:"dropped_rows"`
	Seed              int64         `json:"seed"`
	Warnings          []string      `json:"warnings,omitempty"`
	Points            []PointRecord `json:"points,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// PointRecord is one sampled point in generation order.
type PointRecord struct {
	Seq       int     `json:"seq"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Kind      string  `json:"kind"`
	SourceRow int     `json:"source_row"`
	Anchor    int     `json:"anchor"`
}

// NewRunRecord converts a sampling result into its stored form. The ID and
// CreatedAt are assigned on save.
func NewRunRecord(source string, seed int64, populationSize int, req sampler.Request, res *sampler.Result) *RunRecord {
	run := &RunRecord{
		Source:            source,
		SampleSize:        req.SampleSize,
		ClosePairs:        req.ClosePairs,
		MinDistance:       req.MinDistance,
		ScaledMinDistance: res.Effective.ScaledMinDistance,
		CircleRadius:      res.Effective.CircleRadius,
		PopulationSize:    populationSize,
		DroppedRows:       res.DroppedRows,
		Seed:              seed,
	}
	for _, w := range res.Warnings {
		run.Warnings = append(run.Warnings, w.Message)
	}
	for i, p := range res.Points {
		run.Points = append(run.Points, PointRecord{
			Seq:       i,
			X:         p.X,
			Y:         p.Y,
			Kind:      string(p.Kind),
			SourceRow: p.SourceRow,
			Anchor:    p.Anchor,
		})
	}
	return run
}

// Store records and retrieves sampling runs.
type Store interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
