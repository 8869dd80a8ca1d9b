package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/elasticity"
	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/metrics"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/selection"
	"demand-montecarlo/internal/simulate"
)

type Engine struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// runOutcome is what one run hands back for the reduction.
type runOutcome struct {
	raw       *mat.Dense
	symmetric *mat.Dense
	record    RunRecord
}

// Run executes exp.Runs independent runs on a bounded worker pool. Run i
// writes only row i of the elasticity buffers; the selector matrices are
// averaged after every run has finished. The first error cancels the rest.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	metrics.ExperimentsInFlight.Inc()
	defer metrics.ExperimentsInFlight.Dec()

	grid, err := PilotGrid(exp)
	if err != nil {
		return nil, fmt.Errorf("pilot grid: %w", err)
	}
	truth := simulate.TrueOwnElasticityCurve(exp.Logit.PriceCoefficient, grid.Prices, grid.RivalPrice)

	s, g := exp.Runs, exp.GridPoints
	estimated := mat.NewDense(s, g, nil)
	trueBuf := mat.NewDense(s, g, nil)
	outcomes := make([]runOutcome, s)

	e.logger.Info("experiment started",
		"runs", s,
		"grid_points", g,
		"products", exp.Products(),
		"workers", exp.workers(),
		"seed", exp.Seed,
	)
	started := time.Now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(exp.workers())
	for si := 0; si < s; si++ {
		si := si
		eg.Go(func() error {
			out, elast, err := e.runOnce(egCtx, exp, grid, si)
			if err != nil {
				metrics.RunsFailed.Inc()
				return fmt.Errorf("run %d: %w", si+1, err)
			}
			estimated.SetRow(si, elast)
			trueBuf.SetRow(si, truth)
			outcomes[si] = *out

			metrics.RunsCompleted.Inc()
			metrics.RunDuration.Observe(out.record.Duration.Seconds())
			e.logger.Debug("run finished",
				"run", si+1,
				"included_pairs", out.record.IncludedPairs,
				"newton_iterations", out.record.NewtonIterations,
				"duration", out.record.Duration,
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	j := exp.Products()
	raw := mat.NewDense(j, j, nil)
	sym := mat.NewDense(j, j, nil)
	ledger := make([]RunRecord, 0, s)
	for _, o := range outcomes {
		raw.Add(raw, o.raw)
		sym.Add(sym, o.symmetric)
		ledger = append(ledger, o.record)
	}
	raw.Scale(1/float64(s), raw)
	sym.Scale(1/float64(s), sym)

	e.logger.Info("experiment finished", "runs", s, "duration", time.Since(started))
	return &Result{
		Grid:               grid,
		Estimated:          estimated,
		True:               trueBuf,
		InclusionRaw:       raw,
		InclusionSymmetric: sym,
		Ledger:             ledger,
	}, nil
}

func (e *Engine) runOnce(ctx context.Context, exp Experiment, grid Grid, si int) (*runOutcome, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	seed := exp.runSeed(si)

	m, err := simulate.BlockMarket(exp.Logit, exp.Blocks, rand.NewSource(seed))
	if err != nil {
		return nil, nil, fmt.Errorf("simulate: %w", err)
	}

	selOpts := exp.Selection
	selOpts.Seed = seed
	if selOpts.Logger == nil {
		selOpts.Logger = e.logger
	}
	sel, err := selection.Select(ctx, m, selOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("select: %w", err)
	}

	estOpts := exp.Estimation
	estOpts.Substitution = sel.Symmetric
	fit, err := estimate.InverseDemand(m, estOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("estimate: %w", err)
	}

	deltas := Deltas(grid.Prices, m)
	res, err := elasticity.Compute(fit, m, grid.Prices, deltas, elasticity.Options{
		Pair:    exp.Pair,
		MaxIter: exp.NewtonMaxIter,
		Tol:     exp.NewtonTol,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("elasticities: %w", err)
	}

	active := 0
	for _, pf := range fit.PerProduct {
		active += pf.ActiveConstraints
	}
	return &runOutcome{
		raw:       sel.Raw,
		symmetric: sel.Symmetric,
		record: RunRecord{
			Index:             si,
			Seed:              seed,
			Lambdas:           sel.Lambdas,
			IncludedPairs:     includedPairs(sel.Symmetric),
			ActiveConstraints: active,
			NewtonIterations:  res.Iterations,
			MeanElasticity:    stat.Mean(res.Elasticities, nil),
			Duration:          time.Since(start),
		},
	}, res.Elasticities, nil
}

// PilotGrid draws the pilot market with the base seed and returns GridPoints
// prices spaced evenly between the 25th and 75th percentile of product-1
// prices, together with the median price of product 2.
func PilotGrid(exp Experiment) (Grid, error) {
	pilot, err := simulate.BlockMarket(exp.Logit, exp.Blocks, rand.NewSource(exp.Seed))
	if err != nil {
		return Grid{}, err
	}
	_, j := pilot.Dims()
	if j < 2 {
		return Grid{}, fmt.Errorf("pilot market has %d products, need at least 2", j)
	}
	own := mat.Col(nil, 0, pilot.Prices)
	sort.Float64s(own)
	lo := analysis.PercentileSorted(own, 0.25)
	hi := analysis.PercentileSorted(own, 0.75)

	prices := make([]float64, exp.GridPoints)
	floats.Span(prices, lo, hi)
	return Grid{
		Prices:     prices,
		RivalPrice: model.Median(mat.Col(nil, 1, pilot.Prices)),
	}, nil
}

// Deltas builds the G x J mean-utility matrix: every column is minus the
// median of all prices in m, except column 0 which is minus the grid.
func Deltas(grid []float64, m *model.Market) *mat.Dense {
	_, j := m.Dims()
	fixed := -m.MedianPrice()
	d := mat.NewDense(len(grid), j, nil)
	for g, p := range grid {
		d.Set(g, 0, -p)
		for k := 1; k < j; k++ {
			d.Set(g, k, fixed)
		}
	}
	return d
}

func includedPairs(sym mat.Matrix) int {
	r, _ := sym.Dims()
	n := 0
	for j := 0; j < r; j++ {
		for k := j + 1; k < r; k++ {
			if sym.At(j, k) != 0 {
				n++
			}
		}
	}
	return n
}
