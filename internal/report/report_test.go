package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/montecarlo"
)

func sampleResult() *montecarlo.Result {
	grid := []float64{0.8, 1.0, 1.2}
	est := mat.NewDense(3, 3, []float64{
		-0.30, -0.40, -0.50,
		-0.35, -0.38, -0.52,
		-0.28, -0.45, -0.47,
	})
	truth := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		truth.SetRow(i, []float64{-0.31, -0.39, -0.47})
	}
	inc := model.BlockSubstitution(2, 2)
	return &montecarlo.Result{
		Grid:               montecarlo.Grid{Prices: grid, RivalPrice: 1},
		Estimated:          est,
		True:               truth,
		InclusionRaw:       inc,
		InclusionSymmetric: inc,
		Ledger: []montecarlo.RunRecord{
			{Index: 0, Seed: 2, Duration: time.Second},
			{Index: 1, Seed: 3},
			{Index: 2, Seed: 4},
		},
	}
}

func sampleSummary(t *testing.T, res *montecarlo.Result) *analysis.Summary {
	t.Helper()
	s, err := analysis.Summarize(res.Grid.Prices, res.Estimated, res.True, analysis.DefaultLevels)
	require.NoError(t, err)
	return s
}

func TestWritePlotPNG(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, "png", sampleSummary(t, res), PlotOptions{}))
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, []byte("\x89PNG"), buf.Bytes()[:4])
}

func TestSavePlotByExtension(t *testing.T) {
	res := sampleResult()
	path := filepath.Join(t.TempDir(), "elasticities.svg")
	require.NoError(t, SavePlot(path, sampleSummary(t, res), PlotOptions{Title: "test"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")
	assert.Equal(t, "svg", FormatOf(path))
}

func TestPlotRejectsEmptySummary(t *testing.T) {
	_, err := Plot(&analysis.Summary{}, PlotOptions{})
	assert.Error(t, err)
	assert.Equal(t, "P10", quantileLabel(0.1))
	assert.Equal(t, "P97.5", quantileLabel(0.975))
}

func TestBandsCSV(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	require.NoError(t, EncodeBandsCSV(&buf, sampleSummary(t, res)))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, bandHeader, rows[0])
	assert.Equal(t, "0.800000", rows[1][0])
	assert.Equal(t, "-0.310000", rows[1][1])
	assert.Equal(t, "-0.300000", rows[1][3])
}

func TestWorkbook(t *testing.T) {
	res := sampleResult()
	path := filepath.Join(t.TempDir(), "bands.xlsx")
	require.NoError(t, WriteWorkbook(path, sampleSummary(t, res), res))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetBands, SheetRaw, SheetSymmetric, SheetRuns}, f.GetSheetList())

	bands, err := f.GetRows(SheetBands)
	require.NoError(t, err)
	require.Len(t, bands, 4)
	assert.Equal(t, bandHeader, bands[0])

	raw, err := f.GetRows(SheetRaw)
	require.NoError(t, err)
	require.Len(t, raw, 5)
	assert.Equal(t, []string{"product", "1", "2", "3", "4"}, raw[0])
	assert.Equal(t, []string{"1", "1", "1", "0", "0"}, raw[1])

	runs, err := f.GetRows(SheetRuns)
	require.NoError(t, err)
	assert.Len(t, runs, 4)

	var buf bytes.Buffer
	require.NoError(t, EncodeWorkbook(&buf, sampleSummary(t, res), res))
	assert.Equal(t, []byte("PK"), buf.Bytes()[:2])
}
