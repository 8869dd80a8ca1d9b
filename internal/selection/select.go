// Package selection chooses the substitution structure of a demand system
// with a two-stage hierarchical lasso: main effects of instrument-projected
// shares first, then pairwise interactions admitted by the hierarchy.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/model"
)

// Options mirrors the selector's call contract.
type Options struct {
	Folds           int
	Lambdas         int
	StrongHierarchy bool
	Bootstrap       int
	Seed            uint64

	// MaxIter and Tol bound each coordinate-descent fit.
	MaxIter int
	Tol     float64

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Folds <= 0 {
		o.Folds = 5
	}
	if o.Lambdas <= 0 {
		o.Lambdas = 10
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 1000
	}
	if o.Tol <= 0 {
		o.Tol = 1e-7
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result is the selected substitution structure.
type Result struct {
	// Raw row j marks the products selected for product j's inverse demand.
	Raw *mat.Dense
	// Symmetric is Symmetrize(Raw).
	Symmetric *mat.Dense
	// Frequency is the share of bootstrap fits that selected each pair.
	Frequency *mat.Dense
	// Lambdas is the cross-validated main-effect penalty per product, averaged
	// over bootstrap fits.
	Lambdas []float64
}

// Select runs the selector on market m.
func Select(ctx context.Context, m *model.Market, opts Options) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	opts.defaults()
	t, j := m.Dims()
	rng := rand.New(rand.NewSource(opts.Seed))
	l := lasso{MaxIter: opts.MaxIter, Tol: opts.Tol}

	fits := opts.Bootstrap
	if fits < 1 {
		fits = 1
	}
	freq := mat.NewDense(j, j, nil)
	lambdas := make([]float64, j)

	for b := 0; b < fits; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample := m
		if opts.Bootstrap > 1 {
			idx := make([]int, t)
			for i := range idx {
				idx[i] = rng.Intn(t)
			}
			sample = m.Rows(idx)
		}

		fitted, err := projectShares(sample)
		if err != nil {
			return nil, fmt.Errorf("bootstrap %d: %w", b, err)
		}
		for prod := 0; prod < j; prod++ {
			y := mat.Col(nil, prod, sample.Prices)
			included, lambda, err := selectProduct(ctx, fitted, y, opts, rng, l)
			if err != nil {
				return nil, fmt.Errorf("bootstrap %d product %d: %w", b, prod, err)
			}
			lambdas[prod] += lambda / float64(fits)
			for k, in := range included {
				if in || k == prod {
					freq.Set(prod, k, freq.At(prod, k)+1)
				}
			}
		}
	}
	freq.Scale(1/float64(fits), freq)

	raw := mat.NewDense(j, j, nil)
	for prod := 0; prod < j; prod++ {
		for k := 0; k < j; k++ {
			if freq.At(prod, k) >= 0.5 {
				raw.Set(prod, k, 1)
			}
		}
	}

	opts.Logger.Debug("substitution structure selected",
		"products", j,
		"bootstrap", fits,
		"strong_hierarchy", opts.StrongHierarchy,
	)
	return &Result{
		Raw:       raw,
		Symmetric: model.Symmetrize(raw),
		Frequency: freq,
		Lambdas:   lambdas,
	}, nil
}

// selectProduct returns which shares enter the inverse demand of one product.
func selectProduct(ctx context.Context, fitted *mat.Dense, y []float64, opts Options, rng *rand.Rand, l lasso) ([]bool, float64, error) {
	_, j := fitted.Dims()

	mains, err := crossValidate(ctx, fitted, y, opts.Folds, opts.Lambdas, rng, l)
	if err != nil {
		return nil, 0, err
	}
	included := make([]bool, j)
	for k, b := range mains.Beta {
		included[k] = b != 0
	}

	pairs := allowedInteractions(included, opts.StrongHierarchy)
	if len(pairs) == 0 {
		return included, mains.Lambda, nil
	}

	// interactions are fitted on what the mains leave unexplained
	s := standardize(fitted, y)
	resid := s.predict(fitted, mains.Beta)
	for i := range resid {
		resid[i] = y[i] - resid[i]
	}
	inter := interactionDesign(s.x, pairs)
	second, err := crossValidate(ctx, inter, resid, opts.Folds, opts.Lambdas, rng, l)
	if err != nil {
		return nil, 0, err
	}
	for pi, b := range second.Beta {
		if b != 0 {
			included[pairs[pi][0]] = true
			included[pairs[pi][1]] = true
		}
	}
	return included, mains.Lambda, nil
}

// allowedInteractions lists pairs (k<l) admitted by the hierarchy: both mains
// selected under the strong rule, at least one under the weak rule.
func allowedInteractions(mains []bool, strong bool) [][2]int {
	var out [][2]int
	for k := 0; k < len(mains); k++ {
		for l := k + 1; l < len(mains); l++ {
			ok := mains[k] || mains[l]
			if strong {
				ok = mains[k] && mains[l]
			}
			if ok {
				out = append(out, [2]int{k, l})
			}
		}
	}
	return out
}

func interactionDesign(x *mat.Dense, pairs [][2]int) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, len(pairs), nil)
	for i := 0; i < n; i++ {
		for pi, p := range pairs {
			out.Set(i, pi, x.At(i, p[0])*x.At(i, p[1]))
		}
	}
	return out
}

// projectShares replaces each share column with its least-squares projection
// on [1, z, z^2] over every product's instrument.
func projectShares(m *model.Market) (*mat.Dense, error) {
	t, j := m.Dims()
	basis := mat.NewDense(t, 1+2*j, nil)
	for i := 0; i < t; i++ {
		basis.Set(i, 0, 1)
		for k := 0; k < j; k++ {
			z := m.Instruments.At(i, k)
			basis.Set(i, 1+k, z)
			basis.Set(i, 1+j+k, z*z)
		}
	}
	var coef mat.Dense
	if err := coef.Solve(basis, m.Shares); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("first stage: %w", err)
		}
	}
	var fitted mat.Dense
	fitted.Mul(basis, &coef)
	return &fitted, nil
}
