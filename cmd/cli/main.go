package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/config"
	"demand-montecarlo/internal/data"
	"demand-montecarlo/internal/elasticity"
	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/montecarlo"
	"demand-montecarlo/internal/report"
	"demand-montecarlo/internal/selection"
	"demand-montecarlo/internal/simulate"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "simulate":
		err = cmdSimulate(os.Args[2:])
	case "select":
		err = cmdSelect(ctx, os.Args[2:])
	case "estimate":
		err = cmdEstimate(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli run --config configs/study.yaml --out results/")
	fmt.Println("  cli simulate --products 2 --markets 1000 --out results/market.json")
	fmt.Println("  cli select --data results/market.json")
	fmt.Println("  cli estimate --data results/market.json --grid 10")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - run writes runs.csv, bands.csv, bands.xlsx and elasticities.png")
	fmt.Println("  - product numbers on the command line are 1-based")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/study.yaml", "Path to YAML experiment config")
	outDir := fs.String("out", "results", "Output directory")
	runs := fs.Int("runs", 0, "Optional: override study.runs")
	workers := fs.Int("workers", 0, "Optional: override study.workers")
	plotName := fs.String("plot", "elasticities.png", "Plot file name; the extension picks the format")
	verbose := fs.Bool("v", false, "Debug logging")
	_ = fs.Parse(args)

	logger := newLogger(*verbose)
	cfg, err := config.LoadUnchecked(*cfgPath)
	if err != nil {
		return err
	}
	if *runs > 0 {
		cfg.Study.Runs = *runs
	}
	if *workers > 0 {
		cfg.Study.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, err := montecarlo.New(logger).Run(ctx, cfg.Experiment())
	if err != nil {
		return err
	}
	summary, err := analysis.Summarize(res.Grid.Prices, res.Estimated, res.True, cfg.Levels())
	if err != nil {
		return err
	}

	// ensure output dir exists
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	if err := montecarlo.WriteLedgerCSV(filepath.Join(*outDir, "runs.csv"), res.Ledger); err != nil {
		return err
	}
	if err := report.WriteBandsCSV(filepath.Join(*outDir, "bands.csv"), summary); err != nil {
		return err
	}
	if err := report.WriteWorkbook(filepath.Join(*outDir, "bands.xlsx"), summary, res); err != nil {
		return err
	}
	if err := report.SavePlot(filepath.Join(*outDir, *plotName), summary, report.PlotOptions{Title: cfg.Report.Title}); err != nil {
		return err
	}

	fmt.Printf("Wrote %d runs to %s\n", len(res.Ledger), *outDir)
	fmt.Printf("%-10s %-10s %-10s %-10s %-10s\n", "price", "true", "low", "median", "high")
	for _, b := range summary.Bands {
		fmt.Printf("%-10.4f %-10.4f %-10.4f %-10.4f %-10.4f\n", b.Price, b.True, b.Low, b.Median, b.High)
	}
	rec := analysis.BlockRecovery(res.InclusionSymmetric, cfg.Simulation.Products)
	fmt.Printf("coverage=%.2f mean|median-true|=%.4f within-block=%.2f cross-block=%.2f\n",
		summary.Coverage(), summary.MeanAbsError(), rec.Within, rec.Cross)
	return nil
}

func cmdSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	products := fs.Int("products", 2, "Inside goods per block market")
	markets := fs.Int("markets", 1000, "Markets")
	beta := fs.Float64("beta", -0.4, "Price coefficient")
	xi := fs.Float64("xi", 0.15, "Demand shock standard deviation")
	blocks := fs.Int("blocks", 2, "Block markets combined into one")
	seed := fs.Uint64("seed", 1, "Random seed")
	outPath := fs.String("out", "results/market.json", "Output JSON path")
	_ = fs.Parse(args)

	params := model.LogitParams{Products: *products, Markets: *markets, PriceCoefficient: *beta, XiStdDev: *xi}
	m, err := simulate.BlockMarket(params, *blocks, rand.NewSource(*seed))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return err
	}
	src := &data.Source{Seed: *seed, Blocks: *blocks, PriceCoefficient: *beta, XiStdDev: *xi}
	if err := data.SaveMarketJSON(*outPath, m, src); err != nil {
		return err
	}
	t, j := m.Dims()
	fmt.Printf("Wrote %d markets x %d products to %s\n", t, j, *outPath)
	return nil
}

type selectFlags struct {
	folds     *int
	lambdas   *int
	strong    *bool
	bootstrap *int
	seed      *uint64
}

func addSelectFlags(fs *flag.FlagSet) selectFlags {
	return selectFlags{
		folds:     fs.Int("folds", 5, "Cross-validation folds"),
		lambdas:   fs.Int("lambdas", 10, "Penalty path length"),
		strong:    fs.Bool("strong", true, "Strong hierarchy for interactions"),
		bootstrap: fs.Int("bootstrap", 0, "Bootstrap resamples (0 disables)"),
		seed:      fs.Uint64("seed", 1, "Seed for folds and resamples"),
	}
}

func (f selectFlags) options(logger *slog.Logger) selection.Options {
	return selection.Options{
		Folds:           *f.folds,
		Lambdas:         *f.lambdas,
		StrongHierarchy: *f.strong,
		Bootstrap:       *f.bootstrap,
		Seed:            *f.seed,
		Logger:          logger,
	}
}

func cmdSelect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	dataPath := fs.String("data", "results/market.json", "Path to market JSON")
	sf := addSelectFlags(fs)
	verbose := fs.Bool("v", false, "Debug logging")
	_ = fs.Parse(args)

	m, _, err := data.LoadMarketJSON(*dataPath)
	if err != nil {
		return err
	}
	res, err := selection.Select(ctx, m, sf.options(newLogger(*verbose)))
	if err != nil {
		return err
	}
	fmt.Println("raw:")
	printMatrix(res.Raw)
	fmt.Println("symmetric:")
	printMatrix(res.Symmetric)
	if *sf.bootstrap > 1 {
		fmt.Println("frequency:")
		printMatrix(res.Frequency)
	}
	return nil
}

func cmdEstimate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	dataPath := fs.String("data", "results/market.json", "Path to market JSON")
	order := fs.Int("order", 2, "Bernstein order")
	constraint := fs.String("constraint", string(estimate.ConstraintMonotone), "none, monotone or monotone_all")
	useSelect := fs.Bool("select", true, "Run the selector first; otherwise every pair substitutes")
	gridPoints := fs.Int("grid", 10, "Price grid points")
	product := fs.Int("product", 1, "Product (1-based)")
	conditioning := fs.Int("conditioning", 1, "Conditioning product (1-based)")
	sf := addSelectFlags(fs)
	verbose := fs.Bool("v", false, "Debug logging")
	_ = fs.Parse(args)

	logger := newLogger(*verbose)
	m, _, err := data.LoadMarketJSON(*dataPath)
	if err != nil {
		return err
	}

	var sub mat.Matrix
	if *useSelect {
		sel, err := selection.Select(ctx, m, sf.options(logger))
		if err != nil {
			return err
		}
		sub = sel.Symmetric
		fmt.Println("substitution:")
		printMatrix(sel.Symmetric)
	}
	fit, err := estimate.InverseDemand(m, estimate.Options{
		Order:        *order,
		Constraint:   estimate.Constraint(*constraint),
		Substitution: sub,
	})
	if err != nil {
		return err
	}

	own := mat.Col(nil, 0, m.Prices)
	sort.Float64s(own)
	grid := make([]float64, *gridPoints)
	lo, hi := own[len(own)/4], own[3*len(own)/4]
	for g := range grid {
		grid[g] = lo + (hi-lo)*float64(g)/float64(max(len(grid)-1, 1))
	}
	res, err := elasticity.Compute(fit, m, grid, montecarlo.Deltas(grid, m), elasticity.Options{
		Pair: model.Pair{Product: *product - 1, Conditioning: *conditioning - 1},
	})
	if err != nil {
		return err
	}

	fmt.Printf("%-10s %-12s\n", "price", "elasticity")
	for g, e := range res.Elasticities {
		fmt.Printf("%-10.4f %-12.4f\n", grid[g], e)
	}
	return nil
}

func printMatrix(m mat.Matrix) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := make([]string, c)
		for k := 0; k < c; k++ {
			row[k] = fmt.Sprintf("%.2f", m.At(i, k))
		}
		fmt.Println("  " + strings.Join(row, " "))
	}
}
