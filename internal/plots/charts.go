// Package plots renders the exploratory and training charts as PNG files.
package plots

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"utkface-forge/internal/metrics"
)

const histogramBins = 30

var (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// AgeHistogram writes the age distribution to path.
func AgeHistogram(ages []int, path string) error {
	if len(ages) == 0 {
		return errors.New("plots: no ages to plot")
	}
	values := make(plotter.Values, len(ages))
	for i, a := range ages {
		values[i] = float64(a)
	}
	p := plot.New()
	p.Title.Text = "Age distribution"
	p.X.Label.Text = "Age"
	p.Y.Label.Text = "Count"
	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return fmt.Errorf("plots: age histogram: %w", err)
	}
	p.Add(hist)
	return p.Save(chartWidth, chartHeight, path)
}

// TrainingCurves plots metric and its validation counterpart per epoch.
func TrainingCurves(h *metrics.History, metric, title, path string) error {
	train, err := h.Get(metric)
	if err != nil {
		return err
	}
	val, err := h.Get(metrics.ValPrefix + metric)
	if err != nil {
		return err
	}
	if len(train) == 0 {
		return fmt.Errorf("plots: %s has no epochs", metric)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = metric
	if err := plotutil.AddLinePoints(p, "Train", epochPoints(train), "Validation", epochPoints(val)); err != nil {
		return fmt.Errorf("plots: %s curves: %w", metric, err)
	}
	return p.Save(chartWidth, chartHeight, path)
}

func epochPoints(series []float64) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}
