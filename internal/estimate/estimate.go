// Package estimate fits a nonparametric inverse demand system: each product's
// inverse demand is a tensor Bernstein polynomial in the shares of its
// substitutes, estimated by two-stage least squares under optional
// monotonicity constraints.
package estimate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/bernstein"
	"demand-montecarlo/internal/model"
)

var (
	// ErrUnderidentified is returned when a product has fewer instruments than regressors.
	ErrUnderidentified = errors.New("fewer instruments than regressors")
	// ErrTooManyTerms is returned when the basis is at least as wide as the sample.
	ErrTooManyTerms = errors.New("basis has at least as many terms as markets")
	// ErrDegenerate is returned when a share or instrument column has no variation.
	ErrDegenerate = errors.New("column has no variation")
)

// Constraint selects the shape restriction imposed on each inverse demand.
type Constraint string

const (
	// ConstraintNone fits plain 2SLS.
	ConstraintNone Constraint = "none"
	// ConstraintMonotone makes inverse demand non-decreasing in the own share.
	ConstraintMonotone Constraint = "monotone"
	// ConstraintMonotoneAll makes inverse demand non-decreasing in every included share.
	ConstraintMonotoneAll Constraint = "monotone_all"
)

func (c Constraint) Valid() bool {
	switch c {
	case ConstraintNone, ConstraintMonotone, ConstraintMonotoneAll:
		return true
	}
	return false
}

// Options configures InverseDemand.
type Options struct {
	// Order of the Bernstein basis in shares.
	Order int
	// IVOrder of the Bernstein basis in instruments. Zero means Order.
	IVOrder int
	// Constraint defaults to ConstraintMonotone.
	Constraint Constraint
	// Substitution is the J x J indicator; row j lists the shares entering product j.
	// Nil means every product substitutes with every other.
	Substitution mat.Matrix
	// ExtraVars are optional T x m exogenous market variables, used as both
	// regressors and instruments.
	ExtraVars *mat.Dense
	// Ridge is added to the 2SLS normal matrix, relative to its mean diagonal.
	Ridge float64

	MaxIter int
	Tol     float64
}

func (o *Options) defaults() {
	if o.Order <= 0 {
		o.Order = 2
	}
	if o.IVOrder <= 0 {
		o.IVOrder = o.Order
	}
	if o.Constraint == "" {
		o.Constraint = ConstraintMonotone
	}
	if o.Ridge <= 0 {
		o.Ridge = 1e-8
	}
	if o.Tol <= 0 {
		o.Tol = 1e-10
	}
}

// ProductFit is the fitted inverse demand of one product.
type ProductFit struct {
	Product     int
	Substitutes []int
	Basis       bernstein.Tensor

	// Lower and Upper rescale the share of each substitute into [0,1].
	Lower []float64
	Upper []float64

	// Coefficients on the basis terms, in Basis term order.
	Coefficients []float64
	// Exogenous holds coefficients on the characteristic and extra columns that
	// were included (ExogenousColumns names them).
	Exogenous        []float64
	ExogenousColumns []string

	// Design and Instruments are the T x p regressor and T x q instrument matrices.
	Design      *mat.Dense
	Instruments *mat.Dense

	// ActiveConstraints counts binding monotonicity restrictions.
	ActiveConstraints int
}

// Fit is a fitted inverse demand system.
type Fit struct {
	Products   int
	Order      int
	Constraint Constraint
	PerProduct []ProductFit
}

// InverseDemand estimates delta_j = -p_j = B_j(s_{S_j}) + exog_j'gamma_j + xi_j
// for every product j, instrumenting shares with a Bernstein basis in the
// instruments of the same substitutes.
func InverseDemand(m *model.Market, opts Options) (*Fit, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	opts.defaults()
	if !opts.Constraint.Valid() {
		return nil, fmt.Errorf("unknown constraint %q", opts.Constraint)
	}
	t, j := m.Dims()
	sub := opts.Substitution
	if sub == nil {
		sub = model.FullSubstitution(j)
	}
	if err := model.ValidateSubstitution(sub, j); err != nil {
		return nil, err
	}
	if opts.ExtraVars != nil {
		if r, _ := opts.ExtraVars.Dims(); r != t {
			return nil, fmt.Errorf("%w: extra vars have %d rows, market has %d", model.ErrShapeMismatch, r, t)
		}
	}

	fit := &Fit{Products: j, Order: opts.Order, Constraint: opts.Constraint}
	for prod := 0; prod < j; prod++ {
		pf, err := fitProduct(m, prod, model.Substitutes(sub, prod), opts)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", prod, err)
		}
		fit.PerProduct = append(fit.PerProduct, *pf)
	}
	return fit, nil
}

func fitProduct(m *model.Market, prod int, subs []int, opts Options) (*ProductFit, error) {
	t, _ := m.Dims()
	basis := bernstein.Tensor{Order: opts.Order, Dim: len(subs)}
	ivBasis := bernstein.Tensor{Order: opts.IVOrder, Dim: len(subs)}
	if basis.Size() >= t {
		return nil, fmt.Errorf("%w: %d terms, %d markets", ErrTooManyTerms, basis.Size(), t)
	}

	lower, upper, err := columnBounds(m.Shares, subs)
	if err != nil {
		return nil, fmt.Errorf("shares: %w", err)
	}
	zLower, zUpper, err := columnBounds(m.Instruments, subs)
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}

	exog, exogNames := exogenousColumns(m, prod, opts.ExtraVars)
	nExog := 0
	if !exog.IsEmpty() {
		_, nExog = exog.Dims()
	}

	p := basis.Size() + nExog
	q := ivBasis.Size() + nExog
	if q < p {
		return nil, fmt.Errorf("%w: %d instruments, %d regressors", ErrUnderidentified, q, p)
	}

	x := mat.NewDense(t, p, nil)
	z := mat.NewDense(t, q, nil)
	y := mat.NewVecDense(t, nil)
	sx := make([]float64, len(subs))
	zx := make([]float64, len(subs))
	for i := 0; i < t; i++ {
		for d, k := range subs {
			sx[d] = rescale(m.Shares.At(i, k), lower[d], upper[d])
			zx[d] = rescale(m.Instruments.At(i, k), zLower[d], zUpper[d])
		}
		basis.Eval(x.RawRowView(i)[:basis.Size()], sx)
		ivBasis.Eval(z.RawRowView(i)[:ivBasis.Size()], zx)
		for e := 0; e < nExog; e++ {
			x.Set(i, basis.Size()+e, exog.At(i, e))
			z.Set(i, ivBasis.Size()+e, exog.At(i, e))
		}
		y.SetVec(i, -m.Prices.At(i, prod))
	}

	qp, err := twoStageProgram(x, z, y, opts.Ridge)
	if err != nil {
		return nil, err
	}
	qp.D = constraintMatrix(basis, p, ownDimension(subs, prod), opts.Constraint)
	qp.MaxIter = opts.MaxIter
	qp.Tol = opts.Tol

	sol, err := qp.solve()
	if err != nil {
		return nil, err
	}
	theta := sol.X.RawVector().Data

	return &ProductFit{
		Product:           prod,
		Substitutes:       subs,
		Basis:             basis,
		Lower:             lower,
		Upper:             upper,
		Coefficients:      append([]float64(nil), theta[:basis.Size()]...),
		Exogenous:         append([]float64(nil), theta[basis.Size():]...),
		ExogenousColumns:  exogNames,
		Design:            x,
		Instruments:       z,
		ActiveConstraints: sol.Active,
	}, nil
}

// twoStageProgram builds Q = X'Z(Z'Z)^-1 Z'X and c = X'Z(Z'Z)^-1 Z'y.
func twoStageProgram(x, z *mat.Dense, y *mat.VecDense, ridge float64) (quadProgram, error) {
	_, p := x.Dims()
	_, q := z.Dims()

	var ztz mat.SymDense
	ztz.SymOuterK(1, z.T())
	addRidge(&ztz, 1e-10)
	var chol mat.Cholesky
	if ok := chol.Factorize(&ztz); !ok {
		return quadProgram{}, fmt.Errorf("instrument cross-product: %w", ErrNotPositiveDefinite)
	}

	var xtz mat.Dense
	xtz.Mul(x.T(), z)
	var w mat.Dense // (Z'Z)^-1 Z'X, q x p
	if err := chol.SolveTo(&w, xtz.T()); err != nil {
		return quadProgram{}, fmt.Errorf("project regressors: %w", err)
	}

	var qd mat.Dense
	qd.Mul(&xtz, &w)
	qs := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for k := i; k < p; k++ {
			qs.SetSym(i, k, (qd.At(i, k)+qd.At(k, i))/2)
		}
	}
	addRidge(qs, ridge)

	zty := mat.NewVecDense(q, nil)
	zty.MulVec(z.T(), y)
	c := mat.NewVecDense(p, nil)
	c.MulVec(w.T(), zty)

	return quadProgram{Q: qs, C: c}, nil
}

// constraintMatrix returns D with one row per adjacent-degree pair so that
// D theta >= 0 is the requested monotonicity. Exogenous columns are free.
func constraintMatrix(basis bernstein.Tensor, p, ownDim int, c Constraint) *mat.Dense {
	var dims []int
	switch c {
	case ConstraintMonotone:
		dims = []int{ownDim}
	case ConstraintMonotoneAll:
		for d := 0; d < basis.Dim; d++ {
			dims = append(dims, d)
		}
	default:
		return nil
	}
	var steps [][2]int
	for _, d := range dims {
		steps = append(steps, basis.Steps(d)...)
	}
	if len(steps) == 0 {
		return nil
	}
	d := mat.NewDense(len(steps), p, nil)
	for r, s := range steps {
		d.Set(r, s[0], -1)
		d.Set(r, s[1], 1)
	}
	return d
}

func exogenousColumns(m *model.Market, prod int, extra *mat.Dense) (*mat.Dense, []string) {
	t, _ := m.Dims()
	var cols [][]float64
	var names []string

	char := mat.Col(nil, prod, m.Characteristics)
	if floats.Norm(char, 2) > 0 {
		cols = append(cols, char)
		names = append(names, "characteristic")
	}
	if extra != nil {
		_, e := extra.Dims()
		for k := 0; k < e; k++ {
			col := mat.Col(nil, k, extra)
			if floats.Norm(col, 2) > 0 {
				cols = append(cols, col)
				names = append(names, fmt.Sprintf("extra_%d", k))
			}
		}
	}
	if len(cols) == 0 {
		// gonum has no T x 0 matrix; an empty Dense reports (0, 0)
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(t, len(cols), nil)
	for k, col := range cols {
		out.SetCol(k, col)
	}
	return out, names
}

func columnBounds(x *mat.Dense, cols []int) ([]float64, []float64, error) {
	lower := make([]float64, len(cols))
	upper := make([]float64, len(cols))
	for d, k := range cols {
		col := mat.Col(nil, k, x)
		lower[d] = floats.Min(col)
		upper[d] = floats.Max(col)
		if upper[d]-lower[d] < 1e-12 {
			return nil, nil, fmt.Errorf("%w: column %d", ErrDegenerate, k)
		}
	}
	return lower, upper, nil
}

func ownDimension(subs []int, prod int) int {
	for d, k := range subs {
		if k == prod {
			return d
		}
	}
	return 0
}

func rescale(v, lo, hi float64) float64 {
	return (v - lo) / (hi - lo)
}

func addRidge(s *mat.SymDense, rel float64) {
	n := s.SymmetricDim()
	if n == 0 {
		return
	}
	mean := 0.0
	for i := 0; i < n; i++ {
		mean += s.At(i, i)
	}
	mean /= float64(n)
	if mean <= 0 || math.IsNaN(mean) {
		mean = 1
	}
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+rel*mean)
	}
}
