// Package elasticity computes price elasticities from a fitted inverse demand
// system along a grid of mean utilities.
package elasticity

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/model"
)

// ErrNilFit is returned when Compute is given no fitted system.
var ErrNilFit = errors.New("fit is nil")

// Options configures Compute.
type Options struct {
	// Pair is the (product, conditioning product) of the elasticity, 0-based.
	Pair model.Pair
	// UseTrueShares skips inversion and evaluates the Jacobian at TrueShares (G x J).
	UseTrueShares bool
	TrueShares    *mat.Dense

	MaxIter int
	Tol     float64
}

func (o *Options) defaults() {
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	if o.Tol <= 0 {
		o.Tol = 1e-9
	}
}

// Result holds one value per grid point.
type Result struct {
	Elasticities []float64
	Jacobians    []*mat.Dense
	// Shares is the G x J matrix of implied shares.
	Shares *mat.Dense
	// Iterations is the total Newton iteration count across grid points.
	Iterations int
}

// Compute evaluates the elasticity of Pair.Product's share with respect to
// Pair.Conditioning's price at every row of deltas (G x J mean utilities,
// delta = -price). Implied shares solve fit(s) = delta; the market supplies
// starting points. Since delta = -p, ds/dp_k = -(J^-1)[:,k].
func Compute(fit System, m *model.Market, grid []float64, deltas *mat.Dense, opts Options) (*Result, error) {
	opts.defaults()
	if fit == nil || reflect.ValueOf(fit).Kind() == reflect.Ptr && reflect.ValueOf(fit).IsNil() {
		return nil, ErrNilFit
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	_, j := m.Dims()
	g, dj := deltas.Dims()
	if dj != j {
		return nil, fmt.Errorf("%w: deltas have %d columns, market has %d products", model.ErrShapeMismatch, dj, j)
	}
	if len(grid) != g {
		return nil, fmt.Errorf("%w: grid has %d points, deltas have %d rows", model.ErrShapeMismatch, len(grid), g)
	}
	if err := opts.Pair.Validate(j); err != nil {
		return nil, err
	}
	if opts.UseTrueShares {
		if opts.TrueShares == nil {
			return nil, fmt.Errorf("true shares requested but not supplied")
		}
		if r, c := opts.TrueShares.Dims(); r != g || c != j {
			return nil, fmt.Errorf("%w: true shares are %dx%d, want %dx%d", model.ErrShapeMismatch, r, c, g, j)
		}
	}

	out := &Result{
		Elasticities: make([]float64, g),
		Jacobians:    make([]*mat.Dense, g),
		Shares:       mat.NewDense(g, j, nil),
	}
	starts := startingPoints(m)
	solver := newton{MaxIter: opts.MaxIter, Tol: opts.Tol}

	for gi := 0; gi < g; gi++ {
		target := mat.Row(nil, gi, deltas)

		var shares []float64
		if opts.UseTrueShares {
			shares = mat.Row(nil, gi, opts.TrueShares)
		} else {
			var iters int
			var err error
			shares, iters, err = invert(solver, fit, target, starts)
			out.Iterations += iters
			if err != nil {
				return nil, fmt.Errorf("grid point %d (price %v): %w", gi, grid[gi], err)
			}
		}

		jac, err := fit.Jacobian(shares)
		if err != nil {
			return nil, fmt.Errorf("grid point %d: %w", gi, err)
		}
		var inv mat.Dense
		if err := inv.Inverse(jac); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return nil, fmt.Errorf("grid point %d: jacobian not invertible: %w", gi, err)
			}
		}

		k := opts.Pair.Conditioning
		i := opts.Pair.Product
		dsdp := -inv.At(i, k)
		price := -target[k]

		out.Elasticities[gi] = dsdp * price / shares[i]
		out.Jacobians[gi] = jac
		out.Shares.SetRow(gi, shares)
	}
	return out, nil
}

// invert tries each starting point in turn and returns the first converged solution.
func invert(solver newton, fit System, target []float64, starts [][]float64) ([]float64, int, error) {
	total := 0
	var lastErr error
	for _, s0 := range starts {
		s, iters, err := solver.solve(fit, target, s0)
		total += iters
		if err == nil {
			return s, total, nil
		}
		lastErr = err
	}
	return nil, total, lastErr
}

// startingPoints returns the column medians of the observed shares followed by
// a spread of observed markets.
func startingPoints(m *model.Market) [][]float64 {
	t, _ := m.Dims()
	starts := [][]float64{model.ColumnMedians(m.Shares)}
	const extra = 8
	for e := 0; e < extra && e < t; e++ {
		row := (2*e + 1) * t / (2 * extra)
		starts = append(starts, mat.Row(nil, row, m.Shares))
	}
	return starts
}
