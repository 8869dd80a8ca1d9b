// Package report renders Monte Carlo summaries as figures and tables.
package report

import (
	"errors"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"demand-montecarlo/internal/analysis"
)

// PlotOptions controls the elasticity figure.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func (o *PlotOptions) defaults() {
	if o.Title == "" {
		o.Title = "Own-price elasticity"
	}
	if o.Width <= 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 4 * vg.Inch
	}
}

var (
	trueColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	bandColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// Plot draws the true elasticity curve as a solid line and the low and high
// quantile curves as dashed lines against the price grid.
func Plot(s *analysis.Summary, opts PlotOptions) (*plot.Plot, error) {
	if s == nil || len(s.Bands) == 0 {
		return nil, errors.New("summary has no bands")
	}
	opts.defaults()

	truth := make(plotter.XYs, len(s.Bands))
	low := make(plotter.XYs, len(s.Bands))
	high := make(plotter.XYs, len(s.Bands))
	for i, b := range s.Bands {
		truth[i] = plotter.XY{X: b.Price, Y: b.True}
		low[i] = plotter.XY{X: b.Price, Y: b.Low}
		high[i] = plotter.XY{X: b.Price, Y: b.High}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "price"
	p.Y.Label.Text = "elasticity"
	p.Add(plotter.NewGrid())

	trueLine, err := plotter.NewLine(truth)
	if err != nil {
		return nil, err
	}
	trueLine.Color = trueColor
	trueLine.Width = vg.Points(1.5)

	dashes := []vg.Length{vg.Points(5), vg.Points(3)}
	lowLine, err := plotter.NewLine(low)
	if err != nil {
		return nil, err
	}
	lowLine.Color = bandColor
	lowLine.Dashes = dashes

	highLine, err := plotter.NewLine(high)
	if err != nil {
		return nil, err
	}
	highLine.Color = bandColor
	highLine.Dashes = dashes

	p.Add(trueLine, lowLine, highLine)
	p.Legend.Add("true", trueLine)
	p.Legend.Add(quantileLabel(s.Levels.Low), lowLine)
	p.Legend.Add(quantileLabel(s.Levels.High), highLine)
	p.Legend.Top = true
	return p, nil
}

// SavePlot writes the figure to path; the extension picks the format
// (png, svg, pdf, eps, jpg, tif).
func SavePlot(path string, s *analysis.Summary, opts PlotOptions) error {
	p, err := Plot(s, opts)
	if err != nil {
		return err
	}
	opts.defaults()
	return p.Save(opts.Width, opts.Height, path)
}

// WritePlot renders the figure in format (e.g. "png", "svg") to w.
func WritePlot(w io.Writer, format string, s *analysis.Summary, opts PlotOptions) error {
	p, err := Plot(s, opts)
	if err != nil {
		return err
	}
	opts.defaults()
	wt, err := p.WriterTo(opts.Width, opts.Height, strings.TrimPrefix(strings.ToLower(format), "."))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// FormatOf returns the plot format implied by a file name.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func quantileLabel(q float64) string {
	return "P" + trimFloat(math.Round(q*1000)/10)
}
