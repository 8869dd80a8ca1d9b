package bernstein

// Tensor is the tensor product of Dim univariate order-Order bases.
// Terms are enumerated in mixed radix with the first dimension varying slowest,
// so term index = sum_d alpha_d * (Order+1)^(Dim-1-d).
type Tensor struct {
	Order int
	Dim   int
}

// Size is the number of tensor terms, (Order+1)^Dim.
func (t Tensor) Size() int {
	n := 1
	for d := 0; d < t.Dim; d++ {
		n *= t.Order + 1
	}
	return n
}

// Index decodes a term number into its per-dimension degrees.
func (t Tensor) Index(term int) []int {
	alpha := make([]int, t.Dim)
	for d := t.Dim - 1; d >= 0; d-- {
		alpha[d] = term % (t.Order + 1)
		term /= t.Order + 1
	}
	return alpha
}

// Term encodes per-dimension degrees into a term number.
func (t Tensor) Term(alpha []int) int {
	term := 0
	for d := 0; d < t.Dim; d++ {
		term = term*(t.Order+1) + alpha[d]
	}
	return term
}

// Eval fills dst (len Size) with every tensor term at x (len Dim).
func (t Tensor) Eval(dst, x []float64) {
	uni := make([][]float64, t.Dim)
	for d := 0; d < t.Dim; d++ {
		uni[d] = Basis(t.Order, x[d])
	}
	t.combine(dst, uni)
}

// Partial fills dst with the derivative of every tensor term with respect to x[dim].
func (t Tensor) Partial(dst, x []float64, dim int) {
	uni := make([][]float64, t.Dim)
	for d := 0; d < t.Dim; d++ {
		if d == dim {
			uni[d] = Derivative(t.Order, x[d])
		} else {
			uni[d] = Basis(t.Order, x[d])
		}
	}
	t.combine(dst, uni)
}

// Steps lists (lower, upper) term pairs that differ by one degree in dimension dim.
// A coefficient vector that is non-decreasing over every pair makes the
// polynomial non-decreasing in that dimension.
func (t Tensor) Steps(dim int) [][2]int {
	var out [][2]int
	for term := 0; term < t.Size(); term++ {
		alpha := t.Index(term)
		if alpha[dim] == t.Order {
			continue
		}
		alpha[dim]++
		out = append(out, [2]int{term, t.Term(alpha)})
	}
	return out
}

func (t Tensor) combine(dst []float64, uni [][]float64) {
	for term := range dst[:t.Size()] {
		alpha := t.Index(term)
		v := 1.0
		for d, a := range alpha {
			v *= uni[d][a]
		}
		dst[term] = v
	}
}
