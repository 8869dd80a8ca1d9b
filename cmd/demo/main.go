package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/config"
	"demand-montecarlo/internal/montecarlo"
)

// Demo:
// - Draw two 2-product logit markets (1000 markets, beta=-0.4) and combine them
// - Select the substitution structure, fit the inverse demand, evaluate the
//   own-price elasticity of product 1 on a 10-point grid
// - Print the estimate next to the logit truth for a single run
func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	seed := flag.Uint64("seed", 1, "Random seed")
	outCSV := flag.String("out", "", "Optional path to write the run ledger CSV (e.g. results/runs.csv)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Defaults (can be overridden via --config).
	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fail(err)
		}
		cfg = *loaded
	}
	cfg.Study.Runs = 1
	cfg.Study.Seed = *seed

	exp := cfg.Experiment()
	res, err := montecarlo.New(logger).Run(context.Background(), exp)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Combined market: %d products, %d markets each\n", exp.Products(), exp.Logit.Markets)
	fmt.Printf("Price grid: %d points in [%.3f, %.3f], rival price %.3f\n\n",
		len(res.Grid.Prices), res.Grid.Prices[0], res.Grid.Prices[len(res.Grid.Prices)-1], res.Grid.RivalPrice)

	fmt.Println("Selected substitution (symmetric):")
	r, c := res.InclusionSymmetric.Dims()
	for i := 0; i < r; i++ {
		for k := 0; k < c; k++ {
			fmt.Printf(" %.0f", res.InclusionSymmetric.At(i, k))
		}
		fmt.Println()
	}
	fmt.Println()

	est := mat.Row(nil, 0, res.Estimated)
	truth := res.TrueCurve()
	finite := true
	for g, p := range res.Grid.Prices {
		fmt.Printf("p=%6.3f  estimated=%8.4f  true=%8.4f  diff=%8.4f\n", p, est[g], truth[g], est[g]-truth[g])
		if math.IsNaN(est[g]) || math.IsInf(est[g], 0) {
			finite = false
		}
	}

	if *outCSV != "" {
		if err := montecarlo.WriteLedgerCSV(*outCSV, res.Ledger); err != nil {
			fail(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}

	rec := res.Ledger[0]
	fmt.Printf("\nDone. finite=%v newton_iterations=%d active_constraints=%d took=%s\n",
		finite, rec.NewtonIterations, rec.ActiveConstraints, rec.Duration)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
