package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when simulation parameters fail validation.
var ErrInvalidParams = errors.New("invalid logit parameters")

// LogitParams defines a simulated logit demand system.
// Units:
// - Products: number of inside goods J per market
// - Markets: number of independent markets T
// - PriceCoefficient: utility weight on price (negative for normal goods)
// - XiStdDev: standard deviation of the unobserved demand shock
type LogitParams struct {
	Products         int
	Markets          int
	PriceCoefficient float64
	XiStdDev         float64
}

func (p LogitParams) Validate() error {
	if p.Products <= 0 {
		return fmt.Errorf("%w: Products must be > 0", ErrInvalidParams)
	}
	if p.Markets <= 0 {
		return fmt.Errorf("%w: Markets must be > 0", ErrInvalidParams)
	}
	if math.IsNaN(p.PriceCoefficient) || math.IsInf(p.PriceCoefficient, 0) {
		return fmt.Errorf("%w: PriceCoefficient must be finite", ErrInvalidParams)
	}
	if p.XiStdDev < 0 || math.IsNaN(p.XiStdDev) {
		return fmt.Errorf("%w: XiStdDev must be >= 0", ErrInvalidParams)
	}
	return nil
}

// Pair identifies the (own product, conditioning product) of an elasticity.
// Indices are 0-based.
type Pair struct {
	Product      int
	Conditioning int
}

// IsOwn reports whether the pair describes an own-price elasticity.
func (p Pair) IsOwn() bool { return p.Product == p.Conditioning }

func (p Pair) Validate(products int) error {
	if p.Product < 0 || p.Product >= products {
		return fmt.Errorf("product index %d out of range [0,%d)", p.Product, products)
	}
	if p.Conditioning < 0 || p.Conditioning >= products {
		return fmt.Errorf("conditioning index %d out of range [0,%d)", p.Conditioning, products)
	}
	return nil
}
