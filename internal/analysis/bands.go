package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Levels are the lower, middle and upper quantiles of a band.
type Levels struct {
	Low    float64
	Median float64
	High   float64
}

// DefaultLevels is the 10/50/90 band.
var DefaultLevels = Levels{Low: 0.1, Median: 0.5, High: 0.9}

func (l Levels) Validate() error {
	if l.Low < 0 || l.High > 1 || !(l.Low <= l.Median && l.Median <= l.High) {
		return fmt.Errorf("quantile levels must satisfy 0 <= low <= median <= high <= 1, got %v/%v/%v", l.Low, l.Median, l.High)
	}
	return nil
}

// Band summarizes the estimated elasticities at one grid point across runs.
type Band struct {
	Price float64
	True  float64

	Low    float64
	Median float64
	High   float64

	Mean float64
	Min  float64
	Max  float64
}

type Summary struct {
	Levels Levels
	Runs   int
	Bands  []Band
}

// Summarize computes per grid point quantiles of the S x G estimated buffer.
// The reference curve is row 0 of truth.
func Summarize(grid []float64, estimated, truth *mat.Dense, levels Levels) (*Summary, error) {
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	if estimated == nil || truth == nil {
		return nil, errors.New("elasticity buffers are nil")
	}
	s, g := estimated.Dims()
	ts, tg := truth.Dims()
	if g != len(grid) || tg != len(grid) {
		return nil, fmt.Errorf("buffers have %d and %d columns, grid has %d points", g, tg, len(grid))
	}
	if s == 0 || ts == 0 {
		return nil, errors.New("no runs")
	}

	out := &Summary{Levels: levels, Runs: s, Bands: make([]Band, g)}
	col := make([]float64, s)
	for gi := 0; gi < g; gi++ {
		mat.Col(col, gi, estimated)
		sort.Float64s(col)
		sum := 0.0
		for _, v := range col {
			sum += v
		}
		out.Bands[gi] = Band{
			Price:  grid[gi],
			True:   truth.At(0, gi),
			Low:    PercentileSorted(col, levels.Low),
			Median: PercentileSorted(col, levels.Median),
			High:   PercentileSorted(col, levels.High),
			Mean:   sum / float64(s),
			Min:    col[0],
			Max:    col[s-1],
		}
	}
	return out, nil
}

// Coverage is the share of grid points whose true elasticity lies inside [Low, High].
func (s *Summary) Coverage() float64 {
	if len(s.Bands) == 0 {
		return 0
	}
	in := 0
	for _, b := range s.Bands {
		if b.True >= b.Low && b.True <= b.High {
			in++
		}
	}
	return float64(in) / float64(len(s.Bands))
}

// MeanAbsError is the mean of |Median - True| over the grid.
func (s *Summary) MeanAbsError() float64 {
	if len(s.Bands) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range s.Bands {
		sum += math.Abs(b.Median - b.True)
	}
	return sum / float64(len(s.Bands))
}

// PercentileSorted interpolates linearly between the order statistics of an
// ascending slice.
func PercentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
