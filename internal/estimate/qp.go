package estimate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned when the quadratic term cannot be factorized.
var ErrNotPositiveDefinite = errors.New("quadratic term is not positive definite")

// quadProgram is min 1/2 x'Qx - c'x subject to Dx >= 0.
type quadProgram struct {
	Q *mat.SymDense
	C *mat.VecDense
	D *mat.Dense // nil means unconstrained

	MaxIter int
	Tol     float64
}

type qpSolution struct {
	X          *mat.VecDense
	Iterations int
	Active     int // constraints with a positive multiplier
}

// solve factorizes Q once, takes the unconstrained minimizer and, when it
// violates Dx >= 0, runs projected coordinate descent on the dual
//
//	min_{mu >= 0} 1/2 mu'(D Q^-1 D')mu + mu'(D x0)
//
// and maps back with x = x0 + Q^-1 D' mu.
func (qp quadProgram) solve() (*qpSolution, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(qp.Q); !ok {
		return nil, ErrNotPositiveDefinite
	}
	x0 := mat.NewVecDense(qp.C.Len(), nil)
	if err := chol.SolveVecTo(x0, qp.C); err != nil {
		return nil, fmt.Errorf("solve unconstrained: %w", err)
	}
	if qp.D == nil {
		return &qpSolution{X: x0}, nil
	}
	m, _ := qp.D.Dims()
	if m == 0 {
		return &qpSolution{X: x0}, nil
	}

	slack := mat.NewVecDense(m, nil)
	slack.MulVec(qp.D, x0)
	if mat.Min(slack) >= -qp.Tol {
		return &qpSolution{X: x0}, nil
	}

	// K = Q^-1 D', H = D K
	var k mat.Dense
	if err := chol.SolveTo(&k, qp.D.T()); err != nil {
		return nil, fmt.Errorf("solve constraint directions: %w", err)
	}
	var h mat.Dense
	h.Mul(qp.D, &k)

	maxIter := qp.MaxIter
	if maxIter <= 0 {
		maxIter = 5000
	}
	tol := qp.Tol
	if tol <= 0 {
		tol = 1e-10
	}

	mu := make([]float64, m)
	grad := make([]float64, m) // H mu + D x0, kept up to date
	copy(grad, slack.RawVector().Data)

	iter := 0
	for ; iter < maxIter; iter++ {
		maxStep := 0.0
		for i := 0; i < m; i++ {
			hii := h.At(i, i)
			if hii <= 0 {
				continue
			}
			next := math.Max(0, mu[i]-grad[i]/hii)
			delta := next - mu[i]
			if delta == 0 {
				continue
			}
			mu[i] = next
			for r := 0; r < m; r++ {
				grad[r] += h.At(r, i) * delta
			}
			if a := math.Abs(delta); a > maxStep {
				maxStep = a
			}
		}
		if maxStep < tol {
			break
		}
	}

	muVec := mat.NewVecDense(m, mu)
	x := mat.NewVecDense(x0.Len(), nil)
	x.MulVec(&k, muVec)
	x.AddVec(x, x0)

	active := 0
	for _, v := range mu {
		if v > 0 {
			active++
		}
	}
	return &qpSolution{X: x, Iterations: iter, Active: active}, nil
}
