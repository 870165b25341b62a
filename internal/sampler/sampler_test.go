package sampler

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scatterPopulation builds count rows uniformly scattered in a width x height
// rectangle, with one covariate column carrying the row's ordinal.
func scatterPopulation(seed int64, count int, width, height float64) Population {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, count)
	for i := range rows {
		rows[i] = []float64{rng.Float64() * width, rng.Float64() * height, float64(i)}
	}
	return Population{Columns: []string{"x", "y", "id"}, Rows: rows}
}

func baseRequest() Request {
	return Request{
		SampleSize:   50,
		XIndex:       0,
		YIndex:       1,
		MinDistance:  20,
		ClosePairs:   5,
		CircleRadius: 10,
	}
}

func TestGenerate_ReferenceScenario(t *testing.T) {
	pop := scatterPopulation(7, 1000, 1000, 1000)
	req := baseRequest()

	res, err := Generate(rand.New(rand.NewSource(42)), pop, req)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 50)
	assert.Len(t, res.Points, 50)
	assert.Equal(t, 45, res.Effective.PrimaryCount)

	wantScaled := 20 * math.Sqrt(50.0/45.0)
	assert.InDelta(t, wantScaled, res.Effective.ScaledMinDistance, 1e-12)
	assert.GreaterOrEqual(t, res.Effective.ScaledMinDistance, req.MinDistance)

	// Primary points are pairwise separated by the scaled distance.
	primaries := res.Points[:45]
	for i := range primaries {
		require.Equal(t, KindPrimary, primaries[i].Kind)
		for j := i + 1; j < len(primaries); j++ {
			d := math.Hypot(primaries[i].X-primaries[j].X, primaries[i].Y-primaries[j].Y)
			assert.GreaterOrEqual(t, d, wantScaled-1e-9,
				"primaries %d and %d closer than scaled minimum", i, j)
		}
	}

	// Close pairs sit within the perturbation bound of their anchor.
	bound := math.Max(req.CircleRadius, wantScaled/4)
	for _, p := range res.Points[45:] {
		require.Equal(t, KindClosePair, p.Kind)
		require.GreaterOrEqual(t, p.Anchor, 0)
		require.Less(t, p.Anchor, 45)
		a := res.Points[p.Anchor]
		d := math.Hypot(p.X-a.X, p.Y-a.Y)
		assert.LessOrEqual(t, d, bound+1e-9)
		assert.Equal(t, -1, p.SourceRow)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	pop := scatterPopulation(3, 500, 800, 800)
	req := baseRequest()
	req.SampleSize = 30
	req.ClosePairs = 4

	a, err := Generate(rand.New(rand.NewSource(99)), pop, req)
	require.NoError(t, err)
	b, err := Generate(rand.New(rand.NewSource(99)), pop, req)
	require.NoError(t, err)

	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.Effective, b.Effective)
}

func TestGenerate_NoClosePairsKeepsBaseDistance(t *testing.T) {
	pop := scatterPopulation(11, 400, 1000, 1000)
	req := baseRequest()
	req.SampleSize = 20
	req.ClosePairs = 0

	res, err := Generate(rand.New(rand.NewSource(5)), pop, req)
	require.NoError(t, err)
	assert.Equal(t, req.MinDistance, res.Effective.ScaledMinDistance)
	assert.Len(t, res.Rows, 20)
	for _, p := range res.Points {
		assert.Equal(t, KindPrimary, p.Kind)
	}
}

func TestGenerate_ClosePairLimit(t *testing.T) {
	pop := scatterPopulation(1, 100, 500, 500)
	req := baseRequest()
	req.SampleSize = 10
	req.ClosePairs = 6

	res, err := Generate(rand.New(rand.NewSource(1)), pop, req)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidParameter))
	assert.Nil(t, res)
}

func TestGenerate_InvalidInput(t *testing.T) {
	req := baseRequest()

	t.Run("empty population", func(t *testing.T) {
		_, err := Generate(rand.New(rand.NewSource(1)), Population{}, req)
		assert.True(t, eris.Is(err, ErrInvalidInput))
	})

	t.Run("ragged rows", func(t *testing.T) {
		pop := Population{Rows: [][]float64{{1, 2, 3}, {4, 5}}}
		_, err := Generate(rand.New(rand.NewSource(1)), pop, req)
		assert.True(t, eris.Is(err, ErrInvalidInput))
	})

	t.Run("coordinate index out of range", func(t *testing.T) {
		pop := Population{Rows: [][]float64{{1, 2}}}
		r := req
		r.YIndex = 5
		_, err := Generate(rand.New(rand.NewSource(1)), pop, r)
		assert.True(t, eris.Is(err, ErrInvalidInput))
	})

	t.Run("nil rng", func(t *testing.T) {
		pop := scatterPopulation(1, 10, 100, 100)
		_, err := Generate(nil, pop, req)
		assert.True(t, eris.Is(err, ErrInvalidParameter))
	})
}

func TestGenerate_DropsRowsWithMissingCoordinates(t *testing.T) {
	pop := scatterPopulation(13, 200, 1000, 1000)
	pop.Rows[3][0] = math.NaN()
	pop.Rows[17][1] = math.NaN()

	req := baseRequest()
	req.SampleSize = 10
	req.ClosePairs = 2

	res, err := Generate(rand.New(rand.NewSource(8)), pop, req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DroppedRows)

	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, WarnDataQuality, res.Warnings[0].Code)

	// No sampled row carries a NaN coordinate.
	for _, row := range res.Rows {
		assert.False(t, math.IsNaN(row[0]))
		assert.False(t, math.IsNaN(row[1]))
	}
}

func TestGenerate_ClampsCircleRadius(t *testing.T) {
	pop := scatterPopulation(21, 600, 2000, 2000)
	req := baseRequest()
	req.SampleSize = 20
	req.ClosePairs = 4
	req.MinDistance = 40
	req.CircleRadius = 500

	res, err := Generate(rand.New(rand.NewSource(2)), pop, req)
	require.NoError(t, err)

	limit := res.Effective.ScaledMinDistance / 2
	assert.InDelta(t, limit, res.Effective.CircleRadius, 1e-12)

	var found bool
	for _, w := range res.Warnings {
		if w.Code == WarnParameterAdjusted {
			found = true
		}
	}
	assert.True(t, found, "expected a parameter-adjusted warning")

	for _, p := range res.Points[res.Effective.PrimaryCount:] {
		a := res.Points[p.Anchor]
		d := math.Hypot(p.X-a.X, p.Y-a.Y)
		assert.LessOrEqual(t, d, limit+1e-9)
	}
}

func TestGenerate_InfeasibleConstraint(t *testing.T) {
	// Ten points inside a 1x1 square cannot hold a 1000-unit separation.
	pop := scatterPopulation(4, 10, 1, 1)
	req := Request{
		SampleSize:  5,
		XIndex:      0,
		YIndex:      1,
		MinDistance: 1000,
		MaxAttempts: 200,
	}

	_, err := Generate(rand.New(rand.NewSource(6)), pop, req)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInfeasibleConstraint))
}

func TestGenerate_SampleLargerThanPopulation(t *testing.T) {
	pop := scatterPopulation(9, 8, 100, 100)
	req := baseRequest()
	req.SampleSize = 20
	req.ClosePairs = 0

	_, err := Generate(rand.New(rand.NewSource(6)), pop, req)
	assert.True(t, eris.Is(err, ErrInvalidParameter))
}

func TestGenerate_ResolvesCovariates(t *testing.T) {
	pop := scatterPopulation(17, 300, 1000, 1000)
	req := baseRequest()
	req.SampleSize = 12
	req.ClosePairs = 3

	res, err := Generate(rand.New(rand.NewSource(14)), pop, req)
	require.NoError(t, err)

	for i, p := range res.Points {
		row := res.Rows[i]
		assert.Equal(t, p.X, row[0])
		assert.Equal(t, p.Y, row[1])
		if p.Kind == KindPrimary {
			// The covariate is the ordinal of the source row, which survives
			// NA filtering untouched here.
			assert.Equal(t, float64(p.SourceRow), row[2])
		} else {
			anchor := res.Points[p.Anchor]
			assert.Equal(t, float64(anchor.SourceRow), row[2],
				"close pair carries its anchor's covariates")
		}
	}
}

func TestEffectiveParams_Scaling(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		closePairs int
		minDist    float64
		want       float64
	}{
		{"no close pairs", 40, 0, 25, 25},
		{"tenth close pairs", 50, 5, 20, 20 * math.Sqrt(50.0/45.0)},
		{"half close pairs", 10, 5, 8, 8 * math.Sqrt(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, _ := effectiveParams(Request{
				SampleSize:  tt.size,
				ClosePairs:  tt.closePairs,
				MinDistance: tt.minDist,
			})
			assert.InDelta(t, tt.want, eff.ScaledMinDistance, 1e-12)
			assert.InDelta(t, tt.want*tt.want, eff.DSquared, 1e-9)
			assert.Equal(t, tt.size-tt.closePairs, eff.PrimaryCount)
		})
	}
}
