// Package bernstein evaluates univariate and tensor-product Bernstein
// polynomial bases on [0,1] and their partial derivatives.
package bernstein

import "math"

// Basis returns the n+1 Bernstein basis polynomials of order n at x:
// b_i(x) = C(n,i) x^i (1-x)^(n-i).
func Basis(n int, x float64) []float64 {
	out := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		out[i] = binomial(n, i) * math.Pow(x, float64(i)) * math.Pow(1-x, float64(n-i))
	}
	return out
}

// Derivative returns d/dx of each order-n basis polynomial at x:
// b'_i(x) = n (b_{i-1,n-1}(x) - b_{i,n-1}(x)).
func Derivative(n int, x float64) []float64 {
	out := make([]float64, n+1)
	if n == 0 {
		return out
	}
	lower := Basis(n-1, x)
	for i := 0; i <= n; i++ {
		var left, right float64
		if i > 0 {
			left = lower[i-1]
		}
		if i < n {
			right = lower[i]
		}
		out[i] = float64(n) * (left - right)
	}
	return out
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}
