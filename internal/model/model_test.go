package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoProductMarket(t *testing.T, shares []float64) *Market {
	t.Helper()
	s := mat.NewDense(len(shares)/2, 2, shares)
	p := mat.NewDense(len(shares)/2, 2, nil)
	z := mat.NewDense(len(shares)/2, 2, nil)
	for i := 0; i < len(shares)/2; i++ {
		p.Set(i, 0, float64(i+1))
		p.Set(i, 1, float64(i+2))
		z.Set(i, 0, 0.5)
		z.Set(i, 1, 0.25)
	}
	m, err := NewMarket(s, p, z, nil)
	require.NoError(t, err)
	return m
}

func TestLogitParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params LogitParams
		valid  bool
	}{
		{"default study", LogitParams{Products: 2, Markets: 1000, PriceCoefficient: -0.4, XiStdDev: 0.15}, true},
		{"no products", LogitParams{Products: 0, Markets: 10}, false},
		{"no markets", LogitParams{Products: 2, Markets: 0}, false},
		{"negative xi", LogitParams{Products: 2, Markets: 10, XiStdDev: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidParams))
			}
		})
	}
}

func TestCombineHalvesSharesAndConcatenates(t *testing.T) {
	a := twoProductMarket(t, []float64{0.2, 0.3, 0.1, 0.4})
	b := twoProductMarket(t, []float64{0.5, 0.1, 0.3, 0.3})

	c, err := Combine(a, b)
	require.NoError(t, err)

	tm, j := c.Dims()
	assert.Equal(t, 2, tm)
	assert.Equal(t, 4, j)
	assert.InDelta(t, 0.1, c.Shares.At(0, 0), 1e-12)
	assert.InDelta(t, 0.25, c.Shares.At(0, 2), 1e-12)
	assert.Equal(t, a.Prices.At(1, 1), c.Prices.At(1, 1))
	assert.Equal(t, b.Prices.At(1, 0), c.Prices.At(1, 2))
	assert.NoError(t, c.Validate())
}

func TestCombineRejectsMismatchedMarkets(t *testing.T) {
	a := twoProductMarket(t, []float64{0.2, 0.3, 0.1, 0.4})
	b := twoProductMarket(t, []float64{0.5, 0.1})
	_, err := Combine(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMarketValidateShares(t *testing.T) {
	s := mat.NewDense(1, 2, []float64{0.6, 0.5})
	_, err := NewMarket(s, mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil), nil)
	assert.Error(t, err)

	_, err = NewMarket(s, mat.NewDense(2, 2, nil), mat.NewDense(1, 2, nil), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRowsAndMedians(t *testing.T) {
	m := twoProductMarket(t, []float64{0.2, 0.3, 0.1, 0.4})
	r := m.Rows([]int{1, 1, 0})
	tm, _ := r.Dims()
	assert.Equal(t, 3, tm)
	assert.Equal(t, 0.1, r.Shares.At(0, 0))

	assert.Equal(t, 2.0, m.MedianPrice())
	assert.InDeltaSlice(t, []float64{0.15, 0.35}, ColumnMedians(m.Shares), 1e-12)
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
}

func TestSubstitutionHelpers(t *testing.T) {
	raw := NewSubstitution(3)
	raw.Set(0, 2, 1)

	sym := Symmetrize(raw)
	assert.Equal(t, 1.0, sym.At(2, 0))
	assert.Equal(t, 0.0, sym.At(1, 0))
	assert.Equal(t, []int{0, 2}, Substitutes(sym, 2))
	assert.Equal(t, []int{1}, Substitutes(sym, 1))
	assert.NoError(t, ValidateSubstitution(sym, 3))
	assert.Error(t, ValidateSubstitution(sym, 4))

	block := BlockSubstitution(2, 2)
	assert.Equal(t, 1.0, block.At(0, 1))
	assert.Equal(t, 0.0, block.At(1, 2))
	assert.True(t, mat.Equal(block, Symmetrize(block)))
}

func TestPair(t *testing.T) {
	p := Pair{Product: 0, Conditioning: 0}
	assert.True(t, p.IsOwn())
	assert.NoError(t, p.Validate(4))
	assert.Error(t, Pair{Product: 4}.Validate(4))
}
