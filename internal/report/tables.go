package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/montecarlo"
)

var bandHeader = []string{"price", "true", "low", "median", "high", "mean", "min", "max"}

// WriteBandsCSV writes one row per grid point to path.
func WriteBandsCSV(path string, s *analysis.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeBandsCSV(f, s)
}

func EncodeBandsCSV(out io.Writer, s *analysis.Summary) error {
	if s == nil {
		return errors.New("summary is nil")
	}
	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write(bandHeader); err != nil {
		return err
	}
	for _, b := range s.Bands {
		row := []string{
			fmtFloat(b.Price),
			fmtFloat(b.True),
			fmtFloat(b.Low),
			fmtFloat(b.Median),
			fmtFloat(b.High),
			fmtFloat(b.Mean),
			fmtFloat(b.Min),
			fmtFloat(b.Max),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Workbook sheet names.
const (
	SheetBands     = "bands"
	SheetRaw       = "inclusion_raw"
	SheetSymmetric = "inclusion_symmetric"
	SheetRuns      = "runs"
)

// WriteWorkbook saves the bands, inclusion matrices and run ledger as an XLSX file.
func WriteWorkbook(path string, s *analysis.Summary, res *montecarlo.Result) error {
	f, err := workbook(s, res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// EncodeWorkbook writes the XLSX workbook to w.
func EncodeWorkbook(w io.Writer, s *analysis.Summary, res *montecarlo.Result) error {
	f, err := workbook(s, res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func workbook(s *analysis.Summary, res *montecarlo.Result) (*excelize.File, error) {
	if s == nil || res == nil {
		return nil, errors.New("summary and result are required")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetBands); err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]interface{}{toRow(bandHeader)}
	for _, b := range s.Bands {
		rows = append(rows, []interface{}{b.Price, b.True, b.Low, b.Median, b.High, b.Mean, b.Min, b.Max})
	}
	if err := setRows(f, SheetBands, rows); err != nil {
		f.Close()
		return nil, err
	}

	for _, sheet := range []struct {
		name string
		m    *mat.Dense
	}{
		{SheetRaw, res.InclusionRaw},
		{SheetSymmetric, res.InclusionSymmetric},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := setRows(f, sheet.name, matrixRows(sheet.m)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", sheet.name, err)
		}
	}

	if _, err := f.NewSheet(SheetRuns); err != nil {
		f.Close()
		return nil, err
	}
	runs := [][]interface{}{toRow([]string{"run", "seed", "included_pairs", "active_constraints", "newton_iterations", "mean_elasticity", "duration_ms"})}
	for _, r := range res.Ledger {
		runs = append(runs, []interface{}{r.Index + 1, r.Seed, r.IncludedPairs, r.ActiveConstraints, r.NewtonIterations, r.MeanElasticity, r.Duration.Milliseconds()})
	}
	if err := setRows(f, SheetRuns, runs); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// matrixRows labels a J x J matrix with 1-based product numbers.
func matrixRows(m *mat.Dense) [][]interface{} {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	header := []interface{}{"product"}
	for k := 0; k < c; k++ {
		header = append(header, k+1)
	}
	out := [][]interface{}{header}
	for j := 0; j < r; j++ {
		row := []interface{}{j + 1}
		for k := 0; k < c; k++ {
			row = append(row, m.At(j, k))
		}
		out = append(out, row)
	}
	return out
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func toRow(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func trimFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
