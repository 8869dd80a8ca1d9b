package bernstein

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestBasisPartitionOfUnity(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5} {
		for _, x := range []float64{0, 0.1, 0.5, 0.93, 1} {
			assert.InDelta(t, 1.0, floats.Sum(Basis(n, x)), 1e-12, "n=%d x=%v", n, x)
		}
	}
}

func TestBasisEndpoints(t *testing.T) {
	b := Basis(3, 0)
	assert.Equal(t, []float64{1, 0, 0, 0}, b)
	b = Basis(3, 1)
	assert.Equal(t, []float64{0, 0, 0, 1}, b)
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, n := range []int{1, 2, 4} {
		x := 0.37
		d := Derivative(n, x)
		up := Basis(n, x+h)
		down := Basis(n, x-h)
		for i := range d {
			fd := (up[i] - down[i]) / (2 * h)
			assert.InDelta(t, fd, d[i], 1e-6, "n=%d i=%d", n, i)
		}
		// derivatives of a partition of unity sum to zero
		assert.InDelta(t, 0, floats.Sum(d), 1e-12)
	}
}

func TestTensorIndexRoundTrip(t *testing.T) {
	tn := Tensor{Order: 2, Dim: 3}
	require.Equal(t, 27, tn.Size())
	for term := 0; term < tn.Size(); term++ {
		assert.Equal(t, term, tn.Term(tn.Index(term)))
	}
	assert.Equal(t, []int{0, 1, 2}, tn.Index(5))
}

func TestTensorEvalAndPartial(t *testing.T) {
	tn := Tensor{Order: 2, Dim: 2}
	x := []float64{0.3, 0.8}
	vals := make([]float64, tn.Size())
	tn.Eval(vals, x)
	assert.InDelta(t, 1.0, floats.Sum(vals), 1e-12)

	const h = 1e-6
	part := make([]float64, tn.Size())
	tn.Partial(part, x, 1)
	up := make([]float64, tn.Size())
	down := make([]float64, tn.Size())
	tn.Eval(up, []float64{0.3, 0.8 + h})
	tn.Eval(down, []float64{0.3, 0.8 - h})
	for i := range part {
		assert.InDelta(t, (up[i]-down[i])/(2*h), part[i], 1e-6)
	}
}

func TestTensorSteps(t *testing.T) {
	tn := Tensor{Order: 2, Dim: 2}
	steps := tn.Steps(0)
	// (Order) * (Order+1)^(Dim-1) steps along one dimension
	assert.Len(t, steps, 6)
	for _, s := range steps {
		lo, hi := tn.Index(s[0]), tn.Index(s[1])
		assert.Equal(t, lo[0]+1, hi[0])
		assert.Equal(t, lo[1], hi[1])
	}
}
