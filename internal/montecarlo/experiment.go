// Package montecarlo runs the repeated simulate, select, estimate and
// evaluate loop and collects elasticity buffers across runs.
package montecarlo

import (
	"errors"
	"fmt"
	"runtime"

	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/selection"
)

// ErrInvalidExperiment is returned by Experiment.Validate.
var ErrInvalidExperiment = errors.New("invalid experiment")

// Experiment describes one Monte Carlo study.
// Units:
// - Logit: parameters of each independent block market
// - Blocks: number of block markets combined per run (2 gives the four-product market)
// - Runs: number of repetitions S
// - GridPoints: number of price grid points G
// - Seed: base seed; the pilot draw uses Seed and run i (1-based) uses Seed+i
type Experiment struct {
	Logit      model.LogitParams
	Blocks     int
	Runs       int
	GridPoints int
	Seed       uint64
	Workers    int

	// Pair is the 0-based (product, conditioning) pair of the elasticity.
	Pair model.Pair

	Selection  selection.Options
	Estimation estimate.Options

	// NewtonMaxIter and NewtonTol bound the share inversion. Zero uses the defaults.
	NewtonMaxIter int
	NewtonTol     float64
}

// Products is the product count of the combined market.
func (e Experiment) Products() int { return e.Logit.Products * e.Blocks }

func (e Experiment) Validate() error {
	if err := e.Logit.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExperiment, err)
	}
	if e.Blocks < 1 {
		return fmt.Errorf("%w: Blocks must be >= 1", ErrInvalidExperiment)
	}
	if e.Runs < 1 {
		return fmt.Errorf("%w: Runs must be >= 1", ErrInvalidExperiment)
	}
	if e.GridPoints < 2 {
		return fmt.Errorf("%w: GridPoints must be >= 2", ErrInvalidExperiment)
	}
	if e.Workers < 0 {
		return fmt.Errorf("%w: Workers must be >= 0", ErrInvalidExperiment)
	}
	if err := e.Pair.Validate(e.Products()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExperiment, err)
	}
	if e.Estimation.Constraint != "" && !e.Estimation.Constraint.Valid() {
		return fmt.Errorf("%w: unknown constraint %q", ErrInvalidExperiment, e.Estimation.Constraint)
	}
	return nil
}

func (e Experiment) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// runSeed is the seed of the 0-based run index si.
func (e Experiment) runSeed(si int) uint64 {
	return e.Seed + uint64(si) + 1
}
