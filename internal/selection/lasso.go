package selection

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// standardized holds a centred, unit-variance copy of a design matrix and a
// centred response, plus what is needed to predict on new rows.
type standardized struct {
	x     *mat.Dense
	y     []float64
	means []float64
	scale []float64 // zero for constant columns, which are never selected
	yMean float64
}

func standardize(x *mat.Dense, y []float64) *standardized {
	n, p := x.Dims()
	out := &standardized{
		x:     mat.NewDense(n, p, nil),
		y:     make([]float64, n),
		means: make([]float64, p),
		scale: make([]float64, p),
	}
	col := make([]float64, n)
	for k := 0; k < p; k++ {
		mat.Col(col, k, x)
		mean, sd := stat.PopMeanStdDev(col, nil)
		out.means[k] = mean
		if sd < 1e-12 {
			continue
		}
		out.scale[k] = sd
		for i := range col {
			out.x.Set(i, k, (col[i]-mean)/sd)
		}
	}
	out.yMean = stat.Mean(y, nil)
	for i, v := range y {
		out.y[i] = v - out.yMean
	}
	return out
}

// predict returns fitted responses for raw rows x given standardized-scale coefficients.
func (s *standardized) predict(x *mat.Dense, beta []float64) []float64 {
	n, p := x.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := s.yMean
		for k := 0; k < p; k++ {
			if beta[k] == 0 || s.scale[k] == 0 {
				continue
			}
			v += beta[k] * (x.At(i, k) - s.means[k]) / s.scale[k]
		}
		out[i] = v
	}
	return out
}

// lambdaMax is the smallest penalty at which every coefficient is zero.
func (s *standardized) lambdaMax() float64 {
	n, p := s.x.Dims()
	best := 0.0
	col := make([]float64, n)
	for k := 0; k < p; k++ {
		mat.Col(col, k, s.x)
		if v := math.Abs(floats.Dot(col, s.y)) / float64(n); v > best {
			best = v
		}
	}
	return best
}

// lambdaPath is n log-spaced penalties from max down to max*ratio.
func lambdaPath(max float64, n int, ratio float64) []float64 {
	if n < 1 {
		n = 1
	}
	if max <= 0 {
		max = 1e-8
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = max
		return out
	}
	floats.LogSpan(out, max, max*ratio)
	return out
}

type lasso struct {
	MaxIter int
	Tol     float64
}

// path fits (1/2n)||y - Xb||^2 + lambda*||b||_1 for every lambda in order,
// warm-starting each fit from the previous one. Columns of s.x have unit variance.
func (l lasso) path(s *standardized, lambdas []float64) [][]float64 {
	n, p := s.x.Dims()
	beta := make([]float64, p)
	resid := append([]float64(nil), s.y...)
	cols := make([][]float64, p)
	for k := 0; k < p; k++ {
		cols[k] = mat.Col(nil, k, s.x)
	}
	fn := float64(n)

	out := make([][]float64, len(lambdas))
	for li, lambda := range lambdas {
		for iter := 0; iter < l.MaxIter; iter++ {
			maxDelta := 0.0
			for k := 0; k < p; k++ {
				if s.scale[k] == 0 {
					continue
				}
				rho := floats.Dot(cols[k], resid)/fn + beta[k]
				next := softThreshold(rho, lambda)
				if delta := next - beta[k]; delta != 0 {
					floats.AddScaled(resid, -delta, cols[k])
					beta[k] = next
					if a := math.Abs(delta); a > maxDelta {
						maxDelta = a
					}
				}
			}
			if maxDelta < l.Tol {
				break
			}
		}
		out[li] = append([]float64(nil), beta...)
	}
	return out
}

func softThreshold(v, lambda float64) float64 {
	switch {
	case v > lambda:
		return v - lambda
	case v < -lambda:
		return v + lambda
	default:
		return 0
	}
}
