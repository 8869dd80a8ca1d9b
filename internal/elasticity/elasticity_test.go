package elasticity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/simulate"
)

// exactLogit is the inverse of a logit demand with price coefficient beta,
// written in delta = -p units: delta_j = -log(s_j/s_0)/beta.
type exactLogit struct{ beta float64 }

func (l exactLogit) outside(s []float64) float64 {
	s0 := 1.0
	for _, v := range s {
		s0 -= v
	}
	return s0
}

func (l exactLogit) Eval(s []float64) ([]float64, error) {
	s0 := l.outside(s)
	out := make([]float64, len(s))
	for j, v := range s {
		out[j] = -math.Log(v/s0) / l.beta
	}
	return out, nil
}

func (l exactLogit) Jacobian(s []float64) (*mat.Dense, error) {
	s0 := l.outside(s)
	jac := mat.NewDense(len(s), len(s), nil)
	for j := range s {
		for k := range s {
			v := 1 / s0
			if j == k {
				v += 1 / s[j]
			}
			jac.Set(j, k, -v/l.beta)
		}
	}
	return jac, nil
}

func logitSetup(t *testing.T) (*model.Market, []float64, *mat.Dense) {
	t.Helper()
	m, err := simulate.Logit(model.LogitParams{Products: 2, Markets: 200, PriceCoefficient: -0.4}, rand.NewSource(5))
	require.NoError(t, err)

	grid := []float64{0.8, 1.0, 1.2, 1.4}
	deltas := mat.NewDense(len(grid), 2, nil)
	for g, p := range grid {
		deltas.Set(g, 0, -p)
		deltas.Set(g, 1, -1.0)
	}
	return m, grid, deltas
}

func TestComputeRecoversLogitOwnElasticity(t *testing.T) {
	beta := -0.4
	m, grid, deltas := logitSetup(t)

	res, err := Compute(exactLogit{beta: beta}, m, grid, deltas, Options{Pair: model.Pair{Product: 0, Conditioning: 0}})
	require.NoError(t, err)
	require.Len(t, res.Elasticities, len(grid))
	require.Len(t, res.Jacobians, len(grid))

	for g, p := range grid {
		s := simulate.LogitShare(beta, p, 1.0)
		assert.InDelta(t, s, res.Shares.At(g, 0), 1e-7)
		assert.InDelta(t, beta*p*(1-s), res.Elasticities[g], 1e-6)
	}
}

func TestComputeCrossElasticity(t *testing.T) {
	beta := -0.4
	m, grid, deltas := logitSetup(t)

	res, err := Compute(exactLogit{beta: beta}, m, grid, deltas, Options{Pair: model.Pair{Product: 0, Conditioning: 1}})
	require.NoError(t, err)
	for g := range grid {
		s1 := res.Shares.At(g, 1)
		assert.InDelta(t, -beta*1.0*s1, res.Elasticities[g], 1e-6)
	}
}

func TestComputeWithTrueShares(t *testing.T) {
	beta := -0.4
	m, grid, deltas := logitSetup(t)

	shares := mat.NewDense(len(grid), 2, nil)
	for g, p := range grid {
		shares.Set(g, 0, simulate.LogitShare(beta, p, 1.0))
		shares.Set(g, 1, simulate.LogitShare(beta, 1.0, p))
	}
	res, err := Compute(exactLogit{beta: beta}, m, grid, deltas, Options{UseTrueShares: true, TrueShares: shares})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	for g, p := range grid {
		assert.InDelta(t, beta*p*(1-shares.At(g, 0)), res.Elasticities[g], 1e-9)
	}
}

func TestComputeRejectsBadShapes(t *testing.T) {
	m, grid, deltas := logitSetup(t)
	fit := exactLogit{beta: -0.4}

	_, err := Compute(fit, m, grid[:2], deltas, Options{})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = Compute(fit, m, grid, mat.NewDense(len(grid), 3, nil), Options{})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = Compute(fit, m, grid, deltas, Options{Pair: model.Pair{Product: 2}})
	assert.Error(t, err)

	_, err = Compute(fit, m, grid, deltas, Options{UseTrueShares: true})
	assert.Error(t, err)
}

func TestNewtonReportsNoConvergence(t *testing.T) {
	m, grid, _ := logitSetup(t)
	// a target outside the range of the inverse logit for shares in the simplex is unreachable
	// within a single iteration budget
	deltas := mat.NewDense(len(grid), 2, nil)
	for g := range grid {
		deltas.Set(g, 0, 1e6)
		deltas.Set(g, 1, 1e6)
	}
	_, err := Compute(exactLogit{beta: -0.4}, m, grid, deltas, Options{MaxIter: 3})
	assert.ErrorIs(t, err, ErrNoConvergence)
}

func TestComputeRejectsNilFit(t *testing.T) {
	m, grid, deltas := logitSetup(t)

	_, err := Compute(nil, m, grid, deltas, Options{})
	assert.ErrorIs(t, err, ErrNilFit)

	var fit *estimate.Fit
	_, err = Compute(fit, m, grid, deltas, Options{})
	assert.ErrorIs(t, err, ErrNilFit)
}

// flatSystem maps every share vector to the same utilities.
type flatSystem struct{ delta []float64 }

func (f flatSystem) Eval(s []float64) ([]float64, error) {
	return append([]float64(nil), f.delta...), nil
}

func (f flatSystem) Jacobian(s []float64) (*mat.Dense, error) {
	jac := mat.NewDense(len(s), len(s), nil)
	for k := range s {
		jac.Set(k, k, 1)
	}
	return jac, nil
}

func TestNewtonCountsIterationsUntilStall(t *testing.T) {
	solver := newton{MaxIter: 50, Tol: 1e-9}
	_, iters, err := solver.solve(flatSystem{delta: []float64{1, 1}}, []float64{0, 0}, []float64{0.2, 0.3})
	assert.ErrorIs(t, err, ErrNoConvergence)
	assert.Equal(t, 1, iters)
}
