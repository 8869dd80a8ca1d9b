package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/simulate"
)

func simulatedMarket(t *testing.T, markets int) *model.Market {
	t.Helper()
	m, err := simulate.Logit(model.LogitParams{
		Products:         2,
		Markets:          markets,
		PriceCoefficient: -0.4,
		XiStdDev:         0.15,
	}, rand.NewSource(2024))
	require.NoError(t, err)
	return m
}

func identity(n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, 1)
	}
	return s
}

func TestQuadProgramUnconstrained(t *testing.T) {
	qp := quadProgram{Q: identity(2), C: mat.NewVecDense(2, []float64{1, -1})}
	sol, err := qp.solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -1}, sol.X.RawVector().Data, 1e-12)
}

func TestQuadProgramProjectsOntoOrderConstraint(t *testing.T) {
	qp := quadProgram{
		Q:   identity(2),
		C:   mat.NewVecDense(2, []float64{1, -1}),
		D:   mat.NewDense(1, 2, []float64{-1, 1}),
		Tol: 1e-12,
	}
	sol, err := qp.solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, sol.X.RawVector().Data, 1e-9)
	assert.Equal(t, 1, sol.Active)
}

func TestQuadProgramKeepsFeasibleMinimizer(t *testing.T) {
	qp := quadProgram{
		Q: identity(2),
		C: mat.NewVecDense(2, []float64{-1, 2}),
		D: mat.NewDense(1, 2, []float64{-1, 1}),
	}
	sol, err := qp.solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 2}, sol.X.RawVector().Data, 1e-12)
	assert.Equal(t, 0, sol.Active)
}

func TestInverseDemandMonotoneInOwnShare(t *testing.T) {
	m := simulatedMarket(t, 1000)
	fit, err := InverseDemand(m, Options{Order: 2, Constraint: ConstraintMonotone})
	require.NoError(t, err)
	require.Len(t, fit.PerProduct, 2)

	for _, pf := range fit.PerProduct {
		assert.Equal(t, []int{0, 1}, pf.Substitutes)
		r, c := pf.Design.Dims()
		assert.Equal(t, 1000, r)
		assert.Equal(t, 9, c)
		_, q := pf.Instruments.Dims()
		assert.Equal(t, 9, q)
		assert.Empty(t, pf.ExogenousColumns)

		for _, step := range pf.Basis.Steps(pf.Product) {
			assert.GreaterOrEqual(t, pf.Coefficients[step[1]]-pf.Coefficients[step[0]], -1e-7)
		}
	}

	med := model.ColumnMedians(m.Shares)
	jac, err := fit.Jacobian(med)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, jac.At(0, 0), -1e-7)
	assert.GreaterOrEqual(t, jac.At(1, 1), -1e-7)

	delta, err := fit.Eval(med)
	require.NoError(t, err)
	assert.Len(t, delta, 2)
}

func TestInverseDemandRespectsSubstitution(t *testing.T) {
	m := simulatedMarket(t, 400)
	fit, err := InverseDemand(m, Options{Order: 2, Substitution: model.NewSubstitution(2)})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, fit.PerProduct[0].Substitutes)
	jac, err := fit.Jacobian(model.ColumnMedians(m.Shares))
	require.NoError(t, err)
	assert.Equal(t, 0.0, jac.At(0, 1))
	assert.Equal(t, 0.0, jac.At(1, 0))
}

func TestInverseDemandErrors(t *testing.T) {
	m := simulatedMarket(t, 200)

	_, err := InverseDemand(m, Options{Order: 3, IVOrder: 1})
	assert.ErrorIs(t, err, ErrUnderidentified)

	small := simulatedMarket(t, 8)
	_, err = InverseDemand(small, Options{Order: 2})
	assert.ErrorIs(t, err, ErrTooManyTerms)

	flat := m.Rows(make([]int, 200))
	_, err = InverseDemand(flat, Options{Order: 1})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = InverseDemand(m, Options{Constraint: "convex"})
	assert.Error(t, err)

	fit, err := InverseDemand(m, Options{Order: 1, Constraint: ConstraintNone})
	require.NoError(t, err)
	_, err = fit.Eval([]float64{0.1})
	assert.Error(t, err)
}

func TestInverseDemandExtraVars(t *testing.T) {
	m := simulatedMarket(t, 300)
	extra := mat.NewDense(300, 1, nil)
	for i := 0; i < 300; i++ {
		extra.Set(i, 0, float64(i%7))
	}
	fit, err := InverseDemand(m, Options{Order: 1, ExtraVars: extra})
	require.NoError(t, err)
	assert.Equal(t, []string{"extra_0"}, fit.PerProduct[0].ExogenousColumns)
	assert.Len(t, fit.PerProduct[0].Exogenous, 1)
}
