package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/model"
)

// MarketFile is the JSON dataset shape: row-major T x J matrices plus the
// parameters that produced them, when known.
type MarketFile struct {
	Products int `json:"products"`
	Markets  int `json:"markets"`

	Shares          [][]float64 `json:"shares"`
	Prices          [][]float64 `json:"prices"`
	Instruments     [][]float64 `json:"instruments"`
	Characteristics [][]float64 `json:"characteristics,omitempty"`

	Source *Source `json:"source,omitempty"`
}

// Source records how a simulated dataset was drawn.
type Source struct {
	Seed             uint64  `json:"seed"`
	Blocks           int     `json:"blocks"`
	PriceCoefficient float64 `json:"price_coefficient"`
	XiStdDev         float64 `json:"xi_std_dev"`
}

func LoadMarketJSON(path string) (*model.Market, *MarketFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return DecodeMarket(f)
}

func DecodeMarket(r io.Reader) (*model.Market, *MarketFile, error) {
	var mf MarketFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, nil, err
	}
	m, err := mf.Market()
	if err != nil {
		return nil, nil, err
	}
	return m, &mf, nil
}

// Market converts the file into a validated market.
func (mf *MarketFile) Market() (*model.Market, error) {
	s, err := dense("shares", mf.Shares)
	if err != nil {
		return nil, err
	}
	p, err := dense("prices", mf.Prices)
	if err != nil {
		return nil, err
	}
	z, err := dense("instruments", mf.Instruments)
	if err != nil {
		return nil, err
	}
	var x *mat.Dense
	if len(mf.Characteristics) > 0 {
		if x, err = dense("characteristics", mf.Characteristics); err != nil {
			return nil, err
		}
	}
	m, err := model.NewMarket(s, p, z, x)
	if err != nil {
		return nil, err
	}
	if t, j := m.Dims(); (mf.Markets != 0 && mf.Markets != t) || (mf.Products != 0 && mf.Products != j) {
		return nil, fmt.Errorf("%w: header says %dx%d, data is %dx%d", model.ErrShapeMismatch, mf.Markets, mf.Products, t, j)
	}
	return m, nil
}

func SaveMarketJSON(path string, m *model.Market, src *Source) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := EncodeMarket(f, m, src); err != nil {
		return err
	}
	return f.Close()
}

func EncodeMarket(w io.Writer, m *model.Market, src *Source) error {
	t, j := m.Dims()
	mf := MarketFile{
		Products:        j,
		Markets:         t,
		Shares:          rows(m.Shares),
		Prices:          rows(m.Prices),
		Instruments:     rows(m.Instruments),
		Characteristics: rows(m.Characteristics),
		Source:          src,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(mf)
}

func dense(name string, data [][]float64) (*mat.Dense, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("%s: empty matrix", name)
	}
	r, c := len(data), len(data[0])
	out := mat.NewDense(r, c, nil)
	for i, row := range data {
		if len(row) != c {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, want %d", model.ErrShapeMismatch, name, i, len(row), c)
		}
		out.SetRow(i, row)
	}
	return out, nil
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
