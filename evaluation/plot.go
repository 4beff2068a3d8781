package evaluation

import (
	"fmt"
	"image/color"
	"path/filepath"

	"chest-xray-pipeline/utils"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLimit is how many images per class feed the confidence histogram.
const PlotLimit = 20

const histogramBins = 10

var classColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 180},
	{R: 255, G: 127, B: 14, A: 180},
	{R: 44, G: 160, B: 44, A: 180},
	{R: 214, G: 39, B: 40, A: 180},
}

// PlotConfidence writes a per-class histogram of prediction confidence to path.
// Classes without outcomes are left out. It returns false when nothing was plotted.
func PlotConfidence(report *Report, path string) (bool, error) {
	p := plot.New()
	p.Title.Text = "Prediction confidence by class"
	p.X.Label.Text = "Confidence"
	p.Y.Label.Text = "Images"
	p.X.Min, p.X.Max = 0, 1
	p.Add(plotter.NewGrid())

	plotted := 0
	for i, metrics := range report.ClassMetrics {
		values := metrics.Confidences()
		if len(values) == 0 {
			continue
		}
		if len(values) > PlotLimit {
			values = values[:PlotLimit]
		}

		hist, err := plotter.NewHist(plotter.Values(values), histogramBins)
		if err != nil {
			return false, fmt.Errorf("failed to build histogram for %s: %w", metrics.ClassName, err)
		}
		hist.FillColor = classColors[i%len(classColors)]
		hist.LineStyle.Width = vg.Points(0.5)
		p.Add(hist)
		p.Legend.Add(metrics.ClassName, hist)
		plotted++
	}
	if plotted == 0 {
		return false, nil
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if dir := filepath.Dir(path); dir != "." {
		if err := utils.CreateFolder(dir); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := p.Save(12*vg.Inch, 8*vg.Inch, path); err != nil {
		return false, fmt.Errorf("failed to save confidence plot: %w", err)
	}
	return true, nil
}
