package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NewSubstitution returns a J x J substitution indicator with only the diagonal set.
// Entry (j,k) = 1 means product k may enter the inverse demand of product j.
func NewSubstitution(products int) *mat.Dense {
	m := mat.NewDense(products, products, nil)
	for j := 0; j < products; j++ {
		m.Set(j, j, 1)
	}
	return m
}

// FullSubstitution marks every pair as substitutes.
func FullSubstitution(products int) *mat.Dense {
	m := mat.NewDense(products, products, nil)
	for j := 0; j < products; j++ {
		for k := 0; k < products; k++ {
			m.Set(j, k, 1)
		}
	}
	return m
}

// BlockSubstitution builds the indicator of consecutive product blocks of the given sizes.
func BlockSubstitution(sizes ...int) *mat.Dense {
	n := 0
	for _, s := range sizes {
		n += s
	}
	m := mat.NewDense(n, n, nil)
	off := 0
	for _, s := range sizes {
		for j := off; j < off+s; j++ {
			for k := off; k < off+s; k++ {
				m.Set(j, k, 1)
			}
		}
		off += s
	}
	return m
}

// Symmetrize returns max(raw, raw^T) elementwise: a pair is kept when
// either direction selected it.
func Symmetrize(raw mat.Matrix) *mat.Dense {
	r, c := raw.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < r; j++ {
		for k := 0; k < c; k++ {
			v := raw.At(j, k)
			if w := raw.At(k, j); w > v {
				v = w
			}
			out.Set(j, k, v)
		}
	}
	return out
}

// Substitutes returns the sorted index set of row j, always including j.
func Substitutes(m mat.Matrix, j int) []int {
	_, c := m.Dims()
	out := make([]int, 0, c)
	for k := 0; k < c; k++ {
		if k == j || m.At(j, k) != 0 {
			out = append(out, k)
		}
	}
	return out
}

// ValidateSubstitution checks that m is a square 0/1 matrix over the given product count.
func ValidateSubstitution(m mat.Matrix, products int) error {
	if m == nil {
		return fmt.Errorf("%w: substitution matrix is nil", ErrShapeMismatch)
	}
	r, c := m.Dims()
	if r != products || c != products {
		return fmt.Errorf("%w: substitution matrix is %dx%d, want %dx%d", ErrShapeMismatch, r, c, products, products)
	}
	for j := 0; j < r; j++ {
		for k := 0; k < c; k++ {
			if v := m.At(j, k); v != 0 && v != 1 {
				return fmt.Errorf("substitution entry (%d,%d)=%v is not 0/1", j, k, v)
			}
		}
	}
	return nil
}
