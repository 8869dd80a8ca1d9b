package selection

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// cvResult is the outcome of a cross-validated lasso.
type cvResult struct {
	Lambda float64
	Beta   []float64 // full-sample coefficients at Lambda, standardized scale
	Error  []float64 // mean held-out squared error per lambda
	StdErr []float64 // standard error of Error across folds
	// MinIndex is the path position with the lowest Error; the chosen
	// penalty sits at or before it.
	MinIndex int
}

// crossValidate scores the lambda path by held-out squared error over random
// folds and picks the largest penalty whose error is within one standard
// error of the minimum. It then refits on the whole sample along the path up to it.
func crossValidate(ctx context.Context, x *mat.Dense, y []float64, folds, nlam int, rng *rand.Rand, l lasso) (*cvResult, error) {
	n, _ := x.Dims()
	full := standardize(x, y)
	lambdas := lambdaPath(full.lambdaMax(), nlam, 1e-3)

	if folds > n {
		folds = n
	}
	// foldErr[li] holds the held-out MSE of every scored fold at lambdas[li]
	foldErr := make([][]float64, len(lambdas))
	if folds >= 2 {
		assign := foldAssignment(n, folds, rng)
		for f := 0; f < folds; f++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			train, test := splitFold(assign, f)
			if len(train) == 0 || len(test) == 0 {
				continue
			}
			xs := rowsOf(x, train)
			s := standardize(xs, pick(y, train))
			betas := l.path(s, lambdas)

			xt := rowsOf(x, test)
			yt := pick(y, test)
			for li, beta := range betas {
				pred := s.predict(xt, beta)
				sse := 0.0
				for i := range pred {
					d := pred[i] - yt[i]
					sse += d * d
				}
				foldErr[li] = append(foldErr[li], sse/float64(len(test)))
			}
		}
	}

	cvErr := make([]float64, len(lambdas))
	cvSE := make([]float64, len(lambdas))
	for li, errs := range foldErr {
		if len(errs) == 0 {
			continue
		}
		mean, sd := stat.MeanStdDev(errs, nil)
		cvErr[li] = mean
		if len(errs) > 1 {
			cvSE[li] = sd / math.Sqrt(float64(len(errs)))
		}
	}

	best := len(lambdas) - 1
	chosen := best
	if len(foldErr[0]) > 0 {
		best = floats.MinIdx(cvErr)
		limit := cvErr[best] + cvSE[best]
		for li := 0; li <= best; li++ {
			if cvErr[li] <= limit {
				chosen = li
				break
			}
		}
	}

	betas := l.path(full, lambdas[:chosen+1])
	return &cvResult{
		Lambda:   lambdas[chosen],
		Beta:     betas[chosen],
		Error:    cvErr,
		StdErr:   cvSE,
		MinIndex: best,
	}, nil
}

func foldAssignment(n, folds int, rng *rand.Rand) []int {
	perm := rng.Perm(n)
	assign := make([]int, n)
	for pos, row := range perm {
		assign[row] = pos % folds
	}
	return assign
}

func splitFold(assign []int, fold int) (train, test []int) {
	for row, f := range assign {
		if f == fold {
			test = append(test, row)
		} else {
			train = append(train, row)
		}
	}
	return train, test
}

func rowsOf(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
