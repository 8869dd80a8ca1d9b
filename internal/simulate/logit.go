// Package simulate draws logit demand systems and evaluates their analytic
// elasticities.
package simulate

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"demand-montecarlo/internal/model"
)

// Logit draws one logit market with params.Products inside goods.
//
// For market t and product j:
//
//	z   = 0.05 + 0.9*U(0,1)
//	xi  ~ N(0, XiStdDev)
//	p   = 2*(z + 0.1*U(0,1)) + xi
//	s_j = exp(b*p_j + xi_j) / (1 + sum_k exp(b*p_k + xi_k))
//
// Characteristics are zero. Draws come from src, so a fixed seed reproduces the market.
func Logit(params model.LogitParams, src rand.Source) (*model.Market, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("random source is nil")
	}
	t, j := params.Markets, params.Products

	unif := distuv.Uniform{Min: 0, Max: 1, Src: src}
	var xi distuv.Normal
	if params.XiStdDev > 0 {
		xi = distuv.Normal{Mu: 0, Sigma: params.XiStdDev, Src: src}
	}

	shares := mat.NewDense(t, j, nil)
	prices := mat.NewDense(t, j, nil)
	instruments := mat.NewDense(t, j, nil)

	util := make([]float64, j)
	for i := 0; i < t; i++ {
		denom := 1.0
		for k := 0; k < j; k++ {
			z := 0.9*unif.Rand() + 0.05
			shock := 0.0
			if params.XiStdDev > 0 {
				shock = xi.Rand()
			}
			p := 2*(z+0.1*unif.Rand()) + shock

			instruments.Set(i, k, z)
			prices.Set(i, k, p)
			util[k] = math.Exp(params.PriceCoefficient*p + shock)
			denom += util[k]
		}
		for k := 0; k < j; k++ {
			shares.Set(i, k, util[k]/denom)
		}
	}

	return model.NewMarket(shares, prices, instruments, nil)
}

// BlockMarket draws blocks independent markets of params.Products goods each and
// combines them, halving shares at every merge step so the outside good keeps a share.
// With blocks=2 this is the four-product study market.
func BlockMarket(params model.LogitParams, blocks int, src rand.Source) (*model.Market, error) {
	if blocks < 1 {
		return nil, fmt.Errorf("blocks must be >= 1, got %d", blocks)
	}
	out, err := Logit(params, src)
	if err != nil {
		return nil, err
	}
	for b := 1; b < blocks; b++ {
		next, err := Logit(params, src)
		if err != nil {
			return nil, err
		}
		out, err = model.Combine(out, next)
		if err != nil {
			return nil, fmt.Errorf("combine block %d: %w", b, err)
		}
	}
	return out, nil
}
