package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPercentileSorted(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, PercentileSorted(vals, 0))
	assert.Equal(t, 5.0, PercentileSorted(vals, 1))
	assert.Equal(t, 3.0, PercentileSorted(vals, 0.5))
	assert.InDelta(t, 1.4, PercentileSorted(vals, 0.1), 1e-12)
	assert.InDelta(t, 4.6, PercentileSorted(vals, 0.9), 1e-12)
	assert.Equal(t, 0.0, PercentileSorted(nil, 0.5))
}

func TestSummarizeOrdersQuantiles(t *testing.T) {
	grid := []float64{1, 2, 3}
	est := mat.NewDense(5, 3, []float64{
		-0.5, -1.0, -1.2,
		-0.3, -0.9, -1.6,
		-0.9, -0.4, -1.1,
		-0.1, -1.3, -1.5,
		-0.7, -0.8, -1.4,
	})
	truth := mat.NewDense(5, 3, nil)
	for i := 0; i < 5; i++ {
		truth.SetRow(i, []float64{-0.4, -0.8, -1.3})
	}

	s, err := Summarize(grid, est, truth, DefaultLevels)
	require.NoError(t, err)
	require.Len(t, s.Bands, 3)
	assert.Equal(t, 5, s.Runs)
	for _, b := range s.Bands {
		assert.LessOrEqual(t, b.Low, b.Median)
		assert.LessOrEqual(t, b.Median, b.High)
		assert.LessOrEqual(t, b.Min, b.Low)
		assert.GreaterOrEqual(t, b.Max, b.High)
	}
	assert.Equal(t, 1.0, s.Bands[0].Price)
	assert.Equal(t, -0.8, s.Bands[1].True)
	assert.InDelta(t, -0.5, s.Bands[0].Median, 1e-12)
	assert.InDelta(t, -0.5, s.Bands[0].Mean, 1e-12)
	assert.InDelta(t, -0.82, s.Bands[0].Low, 1e-12)
	assert.Equal(t, 1.0, s.Coverage())
	assert.InDelta(t, (0.1+0.1+0.1)/3, s.MeanAbsError(), 1e-12)
}

func TestSummarizeErrors(t *testing.T) {
	est := mat.NewDense(2, 2, nil)
	_, err := Summarize([]float64{1, 2, 3}, est, est, DefaultLevels)
	assert.Error(t, err)

	_, err = Summarize([]float64{1, 2}, est, est, Levels{Low: 0.9, Median: 0.5, High: 0.1})
	assert.Error(t, err)

	_, err = Summarize([]float64{1, 2}, nil, est, DefaultLevels)
	assert.Error(t, err)
}

func TestRankPairsAndBlockRecovery(t *testing.T) {
	inc := mat.NewDense(4, 4, []float64{
		1, 0.9, 0.1, 0.0,
		0.9, 1, 0.2, 0.1,
		0.1, 0.2, 1, 0.7,
		0.0, 0.1, 0.7, 1,
	})
	ranked := RankPairs(inc)
	require.Len(t, ranked, 6)
	assert.Equal(t, RankedPair{Product: 0, Conditioning: 1, Frequency: 0.9}, ranked[0])
	assert.Equal(t, RankedPair{Product: 2, Conditioning: 3, Frequency: 0.7}, ranked[1])
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Frequency, ranked[i].Frequency)
	}

	rec := BlockRecovery(inc, 2)
	assert.InDelta(t, 0.8, rec.Within, 1e-12)
	assert.InDelta(t, 0.1, rec.Cross, 1e-12)
	assert.True(t, rec.Recovered())
}

func TestRankPairsUsesLargerDirection(t *testing.T) {
	raw := mat.NewDense(2, 2, []float64{1, 0, 0.6, 1})
	ranked := RankPairs(raw)
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.6, ranked[0].Frequency)
}
