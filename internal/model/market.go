package model

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when market matrices disagree on their dimensions.
var ErrShapeMismatch = errors.New("market shape mismatch")

// Market holds observed data for T markets and J products.
// Every matrix is T x J; row t is one market, column j one product.
type Market struct {
	Shares          *mat.Dense
	Prices          *mat.Dense
	Instruments     *mat.Dense
	Characteristics *mat.Dense
}

// NewMarket builds a market and fills missing characteristics with zeros.
func NewMarket(shares, prices, instruments, characteristics *mat.Dense) (*Market, error) {
	if shares == nil || prices == nil || instruments == nil {
		return nil, fmt.Errorf("%w: shares, prices and instruments are required", ErrShapeMismatch)
	}
	if characteristics == nil {
		t, j := shares.Dims()
		characteristics = mat.NewDense(t, j, nil)
	}
	m := &Market{
		Shares:          shares,
		Prices:          prices,
		Instruments:     instruments,
		Characteristics: characteristics,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Dims returns (markets, products).
func (m *Market) Dims() (int, int) {
	return m.Shares.Dims()
}

func (m *Market) Validate() error {
	if m == nil || m.Shares == nil {
		return errors.New("market is nil")
	}
	t, j := m.Shares.Dims()
	if t < 1 || j < 1 {
		return fmt.Errorf("%w: empty market", ErrShapeMismatch)
	}
	for name, x := range map[string]*mat.Dense{
		"prices":          m.Prices,
		"instruments":     m.Instruments,
		"characteristics": m.Characteristics,
	} {
		if x == nil {
			return fmt.Errorf("%w: %s is nil", ErrShapeMismatch, name)
		}
		if r, c := x.Dims(); r != t || c != j {
			return fmt.Errorf("%w: %s is %dx%d, shares are %dx%d", ErrShapeMismatch, name, r, c, t, j)
		}
	}
	for i := 0; i < t; i++ {
		sum := 0.0
		for k := 0; k < j; k++ {
			s := m.Shares.At(i, k)
			if s <= 0 || s >= 1 {
				return fmt.Errorf("market %d product %d: share %v outside (0,1)", i, k, s)
			}
			sum += s
		}
		if sum >= 1 {
			return fmt.Errorf("market %d: inside shares sum to %v, outside good has no share", i, sum)
		}
	}
	return nil
}

// Combine concatenates two markets product-wise and halves every share,
// so the combined market keeps a positive outside share.
// The true substitution structure of the result is block diagonal.
func Combine(a, b *Market) (*Market, error) {
	if a == nil || b == nil {
		return nil, errors.New("cannot combine nil market")
	}
	ta, ja := a.Dims()
	tb, jb := b.Dims()
	if ta != tb {
		return nil, fmt.Errorf("%w: %d vs %d markets", ErrShapeMismatch, ta, tb)
	}

	shares := hcat(a.Shares, b.Shares)
	shares.Scale(0.5, shares)

	out := &Market{
		Shares:          shares,
		Prices:          hcat(a.Prices, b.Prices),
		Instruments:     hcat(a.Instruments, b.Instruments),
		Characteristics: hcat(a.Characteristics, b.Characteristics),
	}
	if _, j := out.Dims(); j != ja+jb {
		return nil, fmt.Errorf("%w: combined market has %d products", ErrShapeMismatch, j)
	}
	return out, nil
}

// Rows returns a new market made of the given rows (repeats allowed).
// It is used for bootstrap resamples and cross-validation folds.
func (m *Market) Rows(idx []int) *Market {
	return &Market{
		Shares:          pickRows(m.Shares, idx),
		Prices:          pickRows(m.Prices, idx),
		Instruments:     pickRows(m.Instruments, idx),
		Characteristics: pickRows(m.Characteristics, idx),
	}
}

// MedianPrice is the median over every observed price in the market.
func (m *Market) MedianPrice() float64 {
	t, j := m.Dims()
	vals := make([]float64, 0, t*j)
	for i := 0; i < t; i++ {
		vals = append(vals, m.Prices.RawRowView(i)...)
	}
	return Median(vals)
}

// ColumnMedians returns the per-product median of x.
func ColumnMedians(x mat.Matrix) []float64 {
	t, j := x.Dims()
	out := make([]float64, j)
	col := make([]float64, t)
	for k := 0; k < j; k++ {
		for i := 0; i < t; i++ {
			col[i] = x.At(i, k)
		}
		out[k] = Median(col)
	}
	return out
}

// Median returns the median of vals without modifying it.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func hcat(a, b *mat.Dense) *mat.Dense {
	ra, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(ra, ca+cb, nil)
	out.Slice(0, ra, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, ra, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

func pickRows(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}
