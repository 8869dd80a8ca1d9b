package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/simulate"
)

func sparseProblem(n int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(99))
	x := mat.NewDense(n, 5, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for k := 0; k < 5; k++ {
			x.Set(i, k, rng.NormFloat64())
		}
		y[i] = 3*x.At(i, 0) - 2*x.At(i, 2) + 0.1*rng.NormFloat64()
	}
	return x, y
}

func TestSoftThreshold(t *testing.T) {
	assert.Equal(t, 1.0, softThreshold(1.5, 0.5))
	assert.Equal(t, -1.0, softThreshold(-1.5, 0.5))
	assert.Equal(t, 0.0, softThreshold(0.3, 0.5))
}

func TestLassoAboveLambdaMaxIsEmpty(t *testing.T) {
	x, y := sparseProblem(200)
	s := standardize(x, y)
	betas := lasso{MaxIter: 1000, Tol: 1e-9}.path(s, []float64{s.lambdaMax() * 1.01})
	for _, b := range betas[0] {
		assert.Equal(t, 0.0, b)
	}
}

func TestLassoRecoversSparseSignal(t *testing.T) {
	x, y := sparseProblem(500)
	s := standardize(x, y)
	betas := lasso{MaxIter: 1000, Tol: 1e-9}.path(s, []float64{2, 1, 0.5})
	beta := betas[2]

	assert.Greater(t, beta[0], 1.5)
	assert.Less(t, beta[2], -1.0)
	for _, k := range []int{1, 3, 4} {
		assert.Equal(t, 0.0, beta[k], "noise column %d", k)
	}
}

func TestCrossValidateSelectsSignal(t *testing.T) {
	x, y := sparseProblem(400)
	res, err := crossValidate(context.Background(), x, y, 5, 20, rand.New(rand.NewSource(1)), lasso{MaxIter: 1000, Tol: 1e-9})
	require.NoError(t, err)
	assert.NotZero(t, res.Beta[0])
	assert.NotZero(t, res.Beta[2])
	assert.Len(t, res.Error, 20)
	assert.Greater(t, res.Lambda, 0.0)
}

func TestCrossValidateOneStandardErrorRule(t *testing.T) {
	x, y := sparseProblem(400)
	res, err := crossValidate(context.Background(), x, y, 5, 20, rand.New(rand.NewSource(1)), lasso{MaxIter: 1000, Tol: 1e-9})
	require.NoError(t, err)
	require.Len(t, res.StdErr, 20)

	path := lambdaPath(standardize(x, y).lambdaMax(), 20, 1e-3)
	chosen := -1
	for li, lambda := range path {
		if lambda == res.Lambda {
			chosen = li
		}
	}
	require.GreaterOrEqual(t, chosen, 0)
	assert.LessOrEqual(t, chosen, res.MinIndex)

	limit := res.Error[res.MinIndex] + res.StdErr[res.MinIndex]
	assert.LessOrEqual(t, res.Error[chosen], limit)
	for li := 0; li < chosen; li++ {
		assert.Greater(t, res.Error[li], limit, "lambda %d is within one standard error", li)
	}

	for _, k := range []int{1, 3, 4} {
		assert.Equal(t, 0.0, res.Beta[k], "noise column %d", k)
	}
}

func TestLambdaPathIsDecreasing(t *testing.T) {
	path := lambdaPath(1, 5, 1e-3)
	require.Len(t, path, 5)
	assert.InDelta(t, 1, path[0], 1e-12)
	assert.InDelta(t, 1e-3, path[4], 1e-12)
	for i := 1; i < len(path); i++ {
		assert.Less(t, path[i], path[i-1])
	}
	assert.Equal(t, []float64{2}, lambdaPath(2, 1, 1e-3))
}

func TestAllowedInteractions(t *testing.T) {
	mains := []bool{true, true, false}
	assert.Equal(t, [][2]int{{0, 1}}, allowedInteractions(mains, true))
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 2}}, allowedInteractions(mains, false))
	assert.Empty(t, allowedInteractions([]bool{false, false}, false))
}

func blockMarket(t *testing.T, markets int, seed uint64) *model.Market {
	t.Helper()
	m, err := simulate.BlockMarket(model.LogitParams{
		Products:         2,
		Markets:          markets,
		PriceCoefficient: -0.4,
		XiStdDev:         0.15,
	}, 2, rand.NewSource(seed))
	require.NoError(t, err)
	return m
}

func TestSelectStructure(t *testing.T) {
	m := blockMarket(t, 1000, 17)
	res, err := Select(context.Background(), m, Options{Folds: 5, Lambdas: 10, StrongHierarchy: true, Bootstrap: 1, Seed: 3})
	require.NoError(t, err)

	r, c := res.Raw.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 4, c)
	for j := 0; j < 4; j++ {
		assert.Equal(t, 1.0, res.Raw.At(j, j))
		for k := 0; k < 4; k++ {
			v := res.Raw.At(j, k)
			assert.True(t, v == 0 || v == 1)
			assert.Equal(t, res.Symmetric.At(j, k), res.Symmetric.At(k, j))
			assert.GreaterOrEqual(t, res.Symmetric.At(j, k), v)
		}
	}
	assert.Len(t, res.Lambdas, 4)

	// the within-block pair carries the price signal of both instruments
	assert.Equal(t, 1.0, res.Symmetric.At(0, 1))
	assert.Equal(t, 1.0, res.Symmetric.At(2, 3))
}

func TestSelectBootstrapFrequencies(t *testing.T) {
	m := blockMarket(t, 300, 5)
	res, err := Select(context.Background(), m, Options{Folds: 3, Lambdas: 8, Bootstrap: 4, Seed: 9})
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		assert.Equal(t, 1.0, res.Frequency.At(j, j))
		for k := 0; k < 4; k++ {
			f := res.Frequency.At(j, k)
			assert.True(t, f >= 0 && f <= 1)
			assert.Equal(t, f >= 0.5, res.Raw.At(j, k) == 1)
		}
	}
}

func TestSelectHonoursCancellation(t *testing.T) {
	m := blockMarket(t, 100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Select(ctx, m, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
