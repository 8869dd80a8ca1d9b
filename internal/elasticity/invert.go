package elasticity

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when the fitted system cannot be inverted at a grid point.
var ErrNoConvergence = errors.New("share inversion did not converge")

// System is a fitted inverse demand: Eval maps shares to mean utilities and
// Jacobian returns d(Eval_j)/d(s_k). *estimate.Fit implements it.
type System interface {
	Eval(s []float64) ([]float64, error)
	Jacobian(s []float64) (*mat.Dense, error)
}

type newton struct {
	MaxIter int
	Tol     float64
}

// solve finds s with sys(s) = target by damped Newton steps, halving a step
// until the residual norm decreases and the shares stay strictly inside the simplex.
// It returns the shares and the number of iterations used.
func (n newton) solve(sys System, target, start []float64) ([]float64, int, error) {
	s := append([]float64(nil), start...)
	res, err := residual(sys, s, target)
	if err != nil {
		return nil, 0, err
	}
	norm := floats.Norm(res, 2)

	step := mat.NewVecDense(len(s), nil)
	trial := make([]float64, len(s))
	for iter := 1; iter <= n.MaxIter; iter++ {
		if norm < n.Tol {
			return s, iter - 1, nil
		}
		jac, err := sys.Jacobian(s)
		if err != nil {
			return nil, iter, err
		}
		if err := step.SolveVec(jac, mat.NewVecDense(len(res), res)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, iter, ErrNoConvergence
			}
		}

		improved := false
		for lambda := 1.0; lambda > 1e-8; lambda /= 2 {
			for k := range s {
				trial[k] = s[k] - lambda*step.AtVec(k)
			}
			if !inSimplex(trial) {
				continue
			}
			tres, err := residual(sys, trial, target)
			if err != nil {
				return nil, iter, err
			}
			if tnorm := floats.Norm(tres, 2); tnorm < norm {
				copy(s, trial)
				res, norm = tres, tnorm
				improved = true
				break
			}
		}
		if !improved {
			// line search stalled
			if norm < n.Tol {
				return s, iter, nil
			}
			return nil, iter, ErrNoConvergence
		}
	}
	if norm < n.Tol {
		return s, n.MaxIter, nil
	}
	return nil, n.MaxIter, ErrNoConvergence
}

func residual(sys System, s, target []float64) ([]float64, error) {
	v, err := sys.Eval(s)
	if err != nil {
		return nil, err
	}
	floats.Sub(v, target)
	return v, nil
}

func inSimplex(s []float64) bool {
	sum := 0.0
	for _, v := range s {
		if v <= 0 || v >= 1 || math.IsNaN(v) {
			return false
		}
		sum += v
	}
	return sum < 1
}
