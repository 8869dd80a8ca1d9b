package montecarlo

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteLedgerCSV writes the run ledger to path.
func WriteLedgerCSV(path string, ledger []RunRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeLedgerCSV(f, ledger)
}

// EncodeLedgerCSV writes the run ledger as CSV to w. There is one lambda
// column per product.
func EncodeLedgerCSV(out io.Writer, ledger []RunRecord) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	products := 0
	for _, r := range ledger {
		if len(r.Lambdas) > products {
			products = len(r.Lambdas)
		}
	}

	header := []string{
		"run",
		"seed",
		"included_pairs",
		"active_constraints",
		"newton_iterations",
		"mean_elasticity",
		"duration_ms",
	}
	for j := 0; j < products; j++ {
		header = append(header, fmt.Sprintf("lambda_%d", j+1))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index + 1),
			strconv.FormatUint(r.Seed, 10),
			strconv.Itoa(r.IncludedPairs),
			strconv.Itoa(r.ActiveConstraints),
			strconv.Itoa(r.NewtonIterations),
			fmtFloat(r.MeanElasticity),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
		}
		for j := 0; j < products; j++ {
			v := ""
			if j < len(r.Lambdas) {
				v = fmtFloat(r.Lambdas[j])
			}
			row = append(row, v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
