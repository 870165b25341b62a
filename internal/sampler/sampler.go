// Package sampler implements spatially inhibitory point sampling with close
// pairs. Given a finite population of coordinates it draws a fixed-size sample
// whose primary points are pairwise separated by at least a minimum distance,
// then adds a configured number of close pairs: points deliberately placed
// inside the inhibition radius of a primary point to support local-variation
// estimation.
//
// The package is pure and I/O-free. All randomness comes from the *rand.Rand
// passed by the caller, so a fixed seed and fixed inputs reproduce the same
// sample exactly.
package sampler

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the rejection loop per sample slot when the
// request does not set its own cap.
const DefaultMaxAttempts = 10000

// Population is an in-memory table of numeric rows. Two columns, designated
// by the request, hold the X and Y coordinates; the remaining columns are
// opaque covariates carried through to the sampled output unchanged.
type Population struct {
	Columns []string
	Rows    [][]float64
}

// Request configures a sampling run.
type Request struct {
	// SampleSize is the total number of points to return, primaries plus
	// close pairs.
	SampleSize int `json:"sample_size"`
	// XIndex and YIndex locate the coordinate columns in each row.
	XIndex int `json:"x_index"`
	YIndex int `json:"y_index"`
	// MinDistance is the base inhibition distance in the population's
	// coordinate units (metres on a projected map).
	MinDistance float64 `json:"min_distance"`
	// ClosePairs is the number of perturbed points. Must satisfy
	// 0 <= ClosePairs <= SampleSize/2.
	ClosePairs int `json:"close_pairs"`
	// CircleRadius is the maximum perturbation radius for close pairs. It is
	// clamped to half the scaled inhibition distance.
	CircleRadius float64 `json:"circle_radius"`
	// MaxAttempts caps candidate draws per slot in the rejection loop.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// EffectiveParams are the derived parameters actually enforced during
// sampling.
type EffectiveParams struct {
	// ScaledMinDistance is MinDistance * sqrt(n/(n-k)). Reserving k slots for
	// points that violate the inhibition constraint requires the remaining
	// n-k points to be spread more strictly to hold the target density.
	ScaledMinDistance float64 `json:"scaled_min_distance"`
	// DSquared is ScaledMinDistance squared, precomputed for the inner
	// distance check.
	DSquared float64 `json:"d_squared"`
	// PrimaryCount is SampleSize - ClosePairs.
	PrimaryCount int `json:"primary_count"`
	// CircleRadius is the perturbation radius after clamping.
	CircleRadius float64 `json:"circle_radius"`
	// MaxAttempts is the resolved per-slot attempt cap.
	MaxAttempts int `json:"max_attempts"`
}

// Kind distinguishes how a sampled point was generated.
type Kind string

const (
	KindPrimary   Kind = "primary"
	KindClosePair Kind = "close_pair"
)

// Point is one sampled coordinate with its provenance. Points are immutable
// once appended to the sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// SourceRow is the index of the originating row in the NA-filtered
	// population, or -1 for close-pair points, whose coordinates are
	// synthetic offsets that match no population row.
	SourceRow int  `json:"source_row"`
	Kind      Kind `json:"kind"`
	// Anchor is the sample-order index of the primary point this close pair
	// perturbs, or -1 for primary points.
	Anchor int `json:"anchor"`
}

// WarningCode classifies recoverable conditions reported on a result.
type WarningCode string

const (
	// WarnDataQuality reports rows dropped for missing coordinate values.
	WarnDataQuality WarningCode = "data_quality"
	// WarnParameterAdjusted reports a circle radius clamped to half the
	// scaled inhibition distance.
	WarnParameterAdjusted WarningCode = "parameter_adjusted"
)

// Warning is a recoverable condition encountered during sampling. Warnings
// never abort a run.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Result is the outcome of a sampling run.
type Result struct {
	// Rows holds SampleSize rows in generation order: primaries first, then
	// close pairs. Primary rows are resolved from the population; close-pair
	// rows carry the anchor's covariates with the perturbed coordinates
	// written into the coordinate columns.
	Rows [][]float64 `json:"rows"`
	// Points holds per-point coordinates and provenance, aligned with Rows.
	Points []Point `json:"points"`
	// Effective reports the parameters actually enforced, including the
	// scaled minimum distance.
	Effective EffectiveParams `json:"effective"`
	// DroppedRows counts population rows removed for missing coordinates.
	DroppedRows int       `json:"dropped_rows"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// Generate draws a sample of req.SampleSize points from pop. It validates the
// request, filters rows with missing coordinates, draws the primary points
// under the scaled minimum-distance constraint, generates the close pairs by
// perturbing random primaries, and resolves every point back to a population
// row.
//
// All randomness is drawn from rng; callers own seeding. The population is
// never mutated.
func Generate(rng *rand.Rand, pop Population, req Request) (*Result, error) {
	if rng == nil {
		return nil, eris.Wrap(ErrInvalidParameter, "nil random source")
	}

	filtered, dropped, err := validate(pop, req)
	if err != nil {
		return nil, err
	}

	res := &Result{DroppedRows: dropped}
	if dropped > 0 {
		res.warn(WarnDataQuality, "%d rows dropped for missing coordinate values", dropped)
	}

	eff, clamped := effectiveParams(req)
	if clamped {
		res.warn(WarnParameterAdjusted, "circle radius clamped to %g (half the scaled minimum distance)", eff.CircleRadius)
	}
	res.Effective = eff

	if eff.PrimaryCount > len(filtered) {
		return nil, eris.Wrapf(ErrInvalidParameter,
			"%d primary points requested from population of %d", eff.PrimaryCount, len(filtered))
	}

	primaries, err := samplePrimaries(rng, filtered, req, eff)
	if err != nil {
		return nil, err
	}
	points := sampleClosePairs(rng, primaries, req, eff)

	res.Points = points
	res.Rows = resolveRows(filtered, points, req)
	return res, nil
}

// validate checks the table shape and request parameters, and drops rows with
// missing coordinates. It returns the filtered rows.
func validate(pop Population, req Request) ([][]float64, int, error) {
	if len(pop.Rows) == 0 {
		return nil, 0, eris.Wrap(ErrInvalidInput, "empty population")
	}
	if req.XIndex < 0 || req.YIndex < 0 || req.XIndex == req.YIndex {
		return nil, 0, eris.Wrapf(ErrInvalidInput,
			"coordinate indices x=%d y=%d", req.XIndex, req.YIndex)
	}
	width := len(pop.Rows[0])
	if req.XIndex >= width || req.YIndex >= width {
		return nil, 0, eris.Wrapf(ErrInvalidInput,
			"coordinate index out of range for %d-column table", width)
	}
	for i, row := range pop.Rows {
		if len(row) != width {
			return nil, 0, eris.Wrapf(ErrInvalidInput, "ragged row %d: %d columns, want %d", i, len(row), width)
		}
	}

	if req.SampleSize <= 0 {
		return nil, 0, eris.Wrapf(ErrInvalidParameter, "sample size %d", req.SampleSize)
	}
	if req.MinDistance < 0 {
		return nil, 0, eris.Wrapf(ErrInvalidParameter, "minimum distance %g", req.MinDistance)
	}
	if req.CircleRadius < 0 {
		return nil, 0, eris.Wrapf(ErrInvalidParameter, "circle radius %g", req.CircleRadius)
	}
	if req.ClosePairs < 0 || 2*req.ClosePairs > req.SampleSize {
		return nil, 0, eris.Wrapf(ErrInvalidParameter,
			"close pairs %d must be between 0 and half of sample size %d", req.ClosePairs, req.SampleSize)
	}

	filtered := make([][]float64, 0, len(pop.Rows))
	for _, row := range pop.Rows {
		if math.IsNaN(row[req.XIndex]) || math.IsNaN(row[req.YIndex]) {
			continue
		}
		filtered = append(filtered, row)
	}
	dropped := len(pop.Rows) - len(filtered)
	if len(filtered) == 0 {
		return nil, dropped, eris.Wrap(ErrInvalidInput, "no rows with complete coordinates")
	}
	return filtered, dropped, nil
}

// effectiveParams derives the enforced parameters from the request. The
// returned bool reports whether the circle radius was clamped.
func effectiveParams(req Request) (EffectiveParams, bool) {
	n := float64(req.SampleSize)
	k := float64(req.ClosePairs)
	scaled := req.MinDistance * math.Sqrt(n/(n-k))

	eff := EffectiveParams{
		ScaledMinDistance: scaled,
		DSquared:          scaled * scaled,
		PrimaryCount:      req.SampleSize - req.ClosePairs,
		CircleRadius:      req.CircleRadius,
		MaxAttempts:       req.MaxAttempts,
	}
	if eff.MaxAttempts <= 0 {
		eff.MaxAttempts = DefaultMaxAttempts
	}

	clamped := false
	if limit := scaled / 2; eff.CircleRadius > limit {
		eff.CircleRadius = limit
		clamped = true
	}
	return eff, clamped
}

// samplePrimaries runs the sequential rejection loop. The first point seeds
// the sample unconstrained; each further slot draws candidate indices with
// replacement until one clears the squared-distance threshold against every
// accepted point. An already-accepted row is rejected by its zero distance to
// itself, so no exclusion set is kept.
func samplePrimaries(rng *rand.Rand, rows [][]float64, req Request, eff EffectiveParams) ([]Point, error) {
	seed := rng.Intn(len(rows))
	points := make([]Point, 0, eff.PrimaryCount)
	points = append(points, Point{
		X:         rows[seed][req.XIndex],
		Y:         rows[seed][req.YIndex],
		SourceRow: seed,
		Kind:      KindPrimary,
		Anchor:    -1,
	})

	for len(points) < eff.PrimaryCount {
		accepted := false
		for attempt := 0; attempt < eff.MaxAttempts; attempt++ {
			c := rng.Intn(len(rows))
			cx := rows[c][req.XIndex]
			cy := rows[c][req.YIndex]
			if minSquaredDistance(points, cx, cy) > eff.DSquared {
				points = append(points, Point{
					X:         cx,
					Y:         cy,
					SourceRow: c,
					Kind:      KindPrimary,
					Anchor:    -1,
				})
				accepted = true
				break
			}
		}
		if !accepted {
			return nil, eris.Wrapf(ErrInfeasibleConstraint,
				"slot %d of %d: no candidate cleared %g after %d attempts",
				len(points)+1, eff.PrimaryCount, eff.ScaledMinDistance, eff.MaxAttempts)
		}
	}
	return points, nil
}

// sampleClosePairs perturbs randomly chosen primary points within the
// perturbation disk. Radius is drawn disk-uniform (r = R*sqrt(U)) so offsets
// are not biased toward the anchor, then floored at a quarter of the scaled
// minimum distance to keep pairs from degenerating into near-duplicates.
func sampleClosePairs(rng *rand.Rand, primaries []Point, req Request, eff EffectiveParams) []Point {
	points := primaries
	for i := 0; i < req.ClosePairs; i++ {
		anchor := rng.Intn(eff.PrimaryCount)
		// Paired draw; only the first index anchors the offset.
		_ = rng.Intn(eff.PrimaryCount)

		r := eff.CircleRadius * math.Sqrt(rng.Float64())
		if floor := eff.ScaledMinDistance / 4; r < floor {
			r = floor
		}
		theta := 2 * math.Pi * rng.Float64()

		points = append(points, Point{
			X:         primaries[anchor].X + r*math.Cos(theta),
			Y:         primaries[anchor].Y + r*math.Sin(theta),
			SourceRow: -1,
			Kind:      KindClosePair,
			Anchor:    anchor,
		})
	}
	return points
}

// minSquaredDistance returns the smallest squared Euclidean distance from
// (x, y) to any point in pts.
func minSquaredDistance(pts []Point, x, y float64) float64 {
	min := math.MaxFloat64
	for _, p := range pts {
		dx := p.X - x
		dy := p.Y - y
		if d := dx*dx + dy*dy; d < min {
			min = d
		}
	}
	return min
}

// resolveRows maps every sampled point back to a population row. Primary
// points are resolved by exact coordinate match: their coordinates are values
// taken from the table, so the first matching row is the source (duplicate
// coordinates resolve to the earliest occurrence). Close-pair coordinates are
// synthetic offsets that match no row; each gets a copy of its anchor's row
// with the perturbed coordinates written over the coordinate columns.
func resolveRows(rows [][]float64, points []Point, req Request) [][]float64 {
	out := make([][]float64, 0, len(points))
	for _, p := range points {
		switch p.Kind {
		case KindPrimary:
			out = append(out, rows[findRow(rows, req, p.X, p.Y)])
		case KindClosePair:
			anchor := points[p.Anchor]
			row := make([]float64, len(rows[anchor.SourceRow]))
			copy(row, rows[anchor.SourceRow])
			row[req.XIndex] = p.X
			row[req.YIndex] = p.Y
			out = append(out, row)
		}
	}
	return out
}

func findRow(rows [][]float64, req Request, x, y float64) int {
	for i, row := range rows {
		if row[req.XIndex] == x && row[req.YIndex] == y {
			return i
		}
	}
	// Unreachable for primary points; coordinates were read from rows.
	zap.L().Warn("sampler: no population row matches sampled coordinates",
		zap.Float64("x", x), zap.Float64("y", y))
	return 0
}

func (r *Result) warn(code WarningCode, format string, args ...any) {
	w := Warning{Code: code, Message: fmt.Sprintf(format, args...)}
	r.Warnings = append(r.Warnings, w)
	zap.L().Warn("sampler: "+w.Message, zap.String("code", string(code)))
}
