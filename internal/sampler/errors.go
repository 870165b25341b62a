package sampler

import "github.com/rotisserie/eris"

// Sentinel errors for sampling failures. Use eris.Is to test for them; the
// wrapped message carries the specific parameter or slot that failed.
var (
	// ErrInvalidInput indicates the population is not a usable two-dimensional
	// table (empty, ragged rows, or coordinate indices out of range).
	ErrInvalidInput = eris.New("sampler: invalid population input")

	// ErrInvalidParameter indicates a request parameter is out of its allowed
	// range, such as closePairs exceeding half the sample size.
	ErrInvalidParameter = eris.New("sampler: invalid parameter")

	// ErrInfeasibleConstraint indicates the rejection loop exhausted its
	// attempt budget without finding a point satisfying the minimum-distance
	// constraint. The inhibition distance is too large for the population
	// density.
	ErrInfeasibleConstraint = eris.New("sampler: infeasible distance constraint")
)
