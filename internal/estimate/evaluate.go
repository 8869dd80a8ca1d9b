package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Eval returns the fitted inverse demand of every product at share vector s,
// excluding exogenous terms. Evaluated at zero characteristics it equals the
// mean utility vector delta.
func (f *Fit) Eval(s []float64) ([]float64, error) {
	if len(s) != f.Products {
		return nil, fmt.Errorf("share vector has %d entries, fit has %d products", len(s), f.Products)
	}
	out := make([]float64, f.Products)
	for _, pf := range f.PerProduct {
		out[pf.Product] = pf.eval(s)
	}
	return out, nil
}

// Jacobian returns the J x J matrix of d(inverse demand_j)/d(s_k) at s.
// Entries for shares outside the substitution set of j are zero.
func (f *Fit) Jacobian(s []float64) (*mat.Dense, error) {
	if len(s) != f.Products {
		return nil, fmt.Errorf("share vector has %d entries, fit has %d products", len(s), f.Products)
	}
	jac := mat.NewDense(f.Products, f.Products, nil)
	for _, pf := range f.PerProduct {
		for d, k := range pf.Substitutes {
			jac.Set(pf.Product, k, pf.partial(s, d))
		}
	}
	return jac, nil
}

func (pf *ProductFit) scaled(s []float64) []float64 {
	x := make([]float64, len(pf.Substitutes))
	for d, k := range pf.Substitutes {
		x[d] = rescale(s[k], pf.Lower[d], pf.Upper[d])
	}
	return x
}

func (pf *ProductFit) eval(s []float64) float64 {
	terms := make([]float64, pf.Basis.Size())
	pf.Basis.Eval(terms, pf.scaled(s))
	return floats.Dot(terms, pf.Coefficients)
}

func (pf *ProductFit) partial(s []float64, dim int) float64 {
	terms := make([]float64, pf.Basis.Size())
	pf.Basis.Partial(terms, pf.scaled(s), dim)
	return floats.Dot(terms, pf.Coefficients) / (pf.Upper[dim] - pf.Lower[dim])
}
