package montecarlo

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// RunRecord is one row of per-run output.
type RunRecord struct {
	Index int
	Seed  uint64

	// Lambdas is the cross-validated main-effect penalty per product.
	Lambdas []float64
	// IncludedPairs counts off-diagonal pairs (j<k) of the symmetrized selection.
	IncludedPairs int

	ActiveConstraints int
	NewtonIterations  int

	MeanElasticity float64
	Duration       time.Duration
}

// Grid is the fixed evaluation grid shared by every run.
type Grid struct {
	// Prices are G points spanning the interquartile range of the pilot's product-1 prices.
	Prices []float64
	// RivalPrice is the pilot median price of product 1's in-block rival.
	RivalPrice float64
}

type Result struct {
	Grid Grid

	// Estimated and True are S x G elasticity buffers indexed by (run, grid point).
	Estimated *mat.Dense
	True      *mat.Dense

	// InclusionRaw and InclusionSymmetric are the per-run selector matrices
	// averaged over runs.
	InclusionRaw       *mat.Dense
	InclusionSymmetric *mat.Dense

	Ledger []RunRecord
}

// TrueCurve returns the reference row of the True buffer.
func (r *Result) TrueCurve() []float64 {
	return mat.Row(nil, 0, r.True)
}
